package estimation

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/zatekoja/waittime/internal/domain/entities"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

const defaultShards = 32

// PipelineConfig tunes an EstimationPipeline
type PipelineConfig struct {
	Alpha        float64
	ThresholdPct float64
	Shards       int
}

// DefaultPipelineConfig returns the production defaults
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Alpha:        DefaultAlpha,
		ThresholdPct: DefaultThresholdPct,
		Shards:       defaultShards,
	}
}

// facilityState is everything the pipeline remembers about one facility.
type facilityState struct {
	smoother      *ArrivalRateSmoother
	model         *QueueingModel
	lastComputed  float64
	lastPublished *float64
	lastResult    entities.EstimationResult
	observations  int
}

type shard struct {
	mu     sync.Mutex
	states map[entities.FacilityKey]*facilityState
}

// FacilitySnapshot is a read-only copy of a facility's pipeline state
type FacilitySnapshot struct {
	Facility      entities.FacilityKey
	SmoothedRate  float64
	Servers       int
	LastComputed  float64
	LastPublished *float64
	LastResult    entities.EstimationResult
	Observations  int
}

// EstimationPipeline turns observations into publish decisions. State is
// kept per facility in a sharded map; observations for the same facility
// are serialized by the shard lock while different shards proceed in
// parallel. Process never blocks on I/O.
type EstimationPipeline struct {
	alpha        float64
	thresholdPct float64
	shards       []*shard
}

// NewEstimationPipeline creates a pipeline. Zero values in cfg fall back to
// the defaults.
func NewEstimationPipeline(cfg PipelineConfig) *EstimationPipeline {
	def := DefaultPipelineConfig()
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = def.Alpha
	}
	if cfg.ThresholdPct <= 0 {
		cfg.ThresholdPct = def.ThresholdPct
	}
	if cfg.Shards <= 0 {
		cfg.Shards = def.Shards
	}

	p := &EstimationPipeline{
		alpha:        cfg.Alpha,
		thresholdPct: cfg.ThresholdPct,
		shards:       make([]*shard, cfg.Shards),
	}
	for i := range p.shards {
		p.shards[i] = &shard{states: make(map[entities.FacilityKey]*facilityState)}
	}
	return p
}

func (p *EstimationPipeline) shardFor(key entities.FacilityKey) *shard {
	return p.shards[xxhash.Sum64String(string(key))%uint64(len(p.shards))]
}

// ValidateConfig rejects queue parameters the model cannot use
func ValidateConfig(cfg entities.FacilityConfig) error {
	if cfg.ServiceRate <= 0 || math.IsNaN(cfg.ServiceRate) || math.IsInf(cfg.ServiceRate, 0) {
		return apperrors.NewInvalidParameterError(fmt.Sprintf("service rate must be positive, got %g", cfg.ServiceRate))
	}
	if cfg.Servers <= 0 {
		return apperrors.NewInvalidParameterError(fmt.Sprintf("server count must be positive, got %d", cfg.Servers))
	}
	return nil
}

// Process runs one observation through smoother, model and change gate.
// An invalid cfg fails this observation only and leaves the facility's
// state untouched.
func (p *EstimationPipeline) Process(obs entities.Observation, cfg entities.FacilityConfig) (entities.PublishDecision, error) {
	if err := ValidateConfig(cfg); err != nil {
		return entities.PublishDecision{}, fmt.Errorf("facility %s: %w", obs.Facility, err)
	}
	if math.IsNaN(obs.RawRate) || math.IsInf(obs.RawRate, 0) {
		err := apperrors.NewInvalidParameterError(fmt.Sprintf("arrival rate must be finite, got %g", obs.RawRate))
		return entities.PublishDecision{}, fmt.Errorf("facility %s: %w", obs.Facility, err)
	}

	sh := p.shardFor(obs.Facility)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[obs.Facility]
	if !ok {
		st = &facilityState{smoother: NewArrivalRateSmoother(p.alpha)}
	}
	model := st.model
	if model == nil || model.Servers() != cfg.Servers {
		model = NewQueueingModel(cfg.Servers)
	}

	// Work on a copy of the smoother so a model error cannot leave it advanced.
	probe := *st.smoother
	rate := probe.Update(math.Max(obs.RawRate, 0))

	result, err := model.Estimate(rate, cfg.ServiceRate, obs.SampleCount)
	if err != nil {
		return entities.PublishDecision{}, fmt.Errorf("facility %s: %w", obs.Facility, err)
	}

	*st.smoother = probe
	st.model = model
	publish := ShouldPublish(st.lastPublished, result.WaitMinutes, p.thresholdPct)

	st.lastComputed = result.WaitMinutes
	st.lastResult = result
	st.observations++
	previous := st.lastPublished
	if publish {
		w := result.WaitMinutes
		st.lastPublished = &w
	}
	sh.states[obs.Facility] = st

	return entities.PublishDecision{
		Result:            result,
		ShouldPublish:     publish,
		SmoothedRate:      rate,
		PreviousPublished: previous,
	}, nil
}

// RestorePublished resets the facility's last published wait to prev, for
// when the update Process decided to publish never reached the transport.
// The next observation is then gated against what subscribers last saw.
func (p *EstimationPipeline) RestorePublished(key entities.FacilityKey, prev *float64) {
	sh := p.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[key]
	if !ok {
		return
	}
	if prev == nil {
		st.lastPublished = nil
		return
	}
	w := *prev
	st.lastPublished = &w
}

// Snapshot returns a copy of a facility's state
func (p *EstimationPipeline) Snapshot(key entities.FacilityKey) (FacilitySnapshot, bool) {
	sh := p.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.states[key]
	if !ok {
		return FacilitySnapshot{}, false
	}
	return snapshotOf(key, st), true
}

// Facilities returns the keys with state, sorted
func (p *EstimationPipeline) Facilities() []entities.FacilityKey {
	var keys []entities.FacilityKey
	for _, sh := range p.shards {
		sh.mu.Lock()
		for k := range sh.states {
			keys = append(keys, k)
		}
		sh.mu.Unlock()
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Len returns the number of facilities with state. Each facility holds
// exactly one model, so this is also the model count.
func (p *EstimationPipeline) Len() int {
	n := 0
	for _, sh := range p.shards {
		sh.mu.Lock()
		n += len(sh.states)
		sh.mu.Unlock()
	}
	return n
}

func snapshotOf(key entities.FacilityKey, st *facilityState) FacilitySnapshot {
	rate, _ := st.smoother.Current()
	snap := FacilitySnapshot{
		Facility:     key,
		SmoothedRate: rate,
		Servers:      st.model.Servers(),
		LastComputed: st.lastComputed,
		LastResult:   st.lastResult,
		Observations: st.observations,
	}
	if st.lastPublished != nil {
		v := *st.lastPublished
		snap.LastPublished = &v
	}
	return snap
}
