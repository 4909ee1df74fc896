package estimation

import (
	"fmt"
	"math"

	"github.com/zatekoja/waittime/internal/domain/entities"
	apperrors "github.com/zatekoja/waittime/pkg/errors"
)

const (
	// OverloadThreshold is the utilization at and above which a queue is
	// treated as unstable.
	OverloadThreshold = 0.95

	// OverloadCILower is the lower CI bound reported for overloaded queues.
	OverloadCILower = 15.0

	// z-score of a two-sided 95% normal interval.
	z95 = 1.96

	// MaxCachedServers bounds the factorial table held by a model. Larger
	// server counts use the Erlang-B recursion instead of factorials.
	MaxCachedServers = 64
)

// ErrInvalidParameter matches any INVALID_PARAMETER AppError via errors.Is.
var ErrInvalidParameter = &apperrors.AppError{Type: apperrors.ErrorTypeInvalidParameter}

// QueueingModel computes wait-time estimates for an M/M/1 or M/M/k queue.
// Each model owns its factorial table; nothing is shared between models.
type QueueingModel struct {
	servers    int
	factorials [MaxCachedServers + 1]float64
}

// NewQueueingModel creates a model for the given server count. Counts below
// one are treated as a single server.
func NewQueueingModel(servers int) *QueueingModel {
	if servers < 1 {
		servers = 1
	}
	m := &QueueingModel{servers: servers}
	m.factorials[0] = 1
	for i := 1; i <= MaxCachedServers; i++ {
		m.factorials[i] = m.factorials[i-1] * float64(i)
	}
	return m
}

// Servers returns the server count the model was built for
func (m *QueueingModel) Servers() int {
	return m.servers
}

// Estimate returns the expected time in system for arrival rate lambda and
// per-server service rate mu (both per minute) using the model's server count.
func (m *QueueingModel) Estimate(lambda, mu float64, sampleCount int) (entities.EstimationResult, error) {
	return m.EstimateWithServers(lambda, mu, sampleCount, m.servers)
}

// EstimateWithServers is Estimate with an explicit server count k.
func (m *QueueingModel) EstimateWithServers(lambda, mu float64, sampleCount, k int) (entities.EstimationResult, error) {
	if mu <= 0 || math.IsNaN(mu) {
		return entities.EstimationResult{}, apperrors.NewInvalidParameterError(fmt.Sprintf("service rate must be positive, got %g", mu))
	}
	if k < 1 {
		k = 1
	}

	if lambda <= 0 || math.IsNaN(lambda) {
		return entities.EstimationResult{Status: entities.WaitStatusLow}, nil
	}

	rho := lambda / (float64(k) * mu)
	if rho >= OverloadThreshold {
		return entities.EstimationResult{
			WaitMinutes: math.Inf(1),
			CILower:     OverloadCILower,
			CIUpper:     math.Inf(1),
			Utilization: rho,
			Status:      entities.WaitStatusOverloaded,
		}, nil
	}

	var w float64
	if k == 1 {
		w = mm1Wait(lambda, mu)
	} else {
		w = m.erlangCWait(lambda, mu, k)
	}

	lower, upper := confidenceInterval(w, sampleCount)
	return entities.EstimationResult{
		WaitMinutes: w,
		CILower:     lower,
		CIUpper:     upper,
		Utilization: rho,
		Status:      Classify(rho),
	}, nil
}

// mm1Wait is the M/M/1 time in system; callers guarantee lambda < mu.
func mm1Wait(lambda, mu float64) float64 {
	rho := lambda / mu
	wq := rho / (mu * (1 - rho))
	return wq + 1/mu
}

// erlangCWait is the M/M/k time in system using the Erlang-C probability of
// waiting. Valid for any k >= 1 with lambda < k*mu.
func (m *QueueingModel) erlangCWait(lambda, mu float64, k int) float64 {
	c := m.ErlangC(lambda, mu, k)
	wq := c / (float64(k)*mu - lambda)
	return wq + 1/mu
}

// ErlangC returns the probability that an arrival has to wait in an M/M/k
// queue with offered load lambda/mu. Server counts beyond the factorial
// table go through the Erlang-B recursion, which never forms a^k or k!.
func (m *QueueingModel) ErlangC(lambda, mu float64, k int) float64 {
	a := lambda / mu
	rho := a / float64(k)

	if k > MaxCachedServers {
		b := erlangB(a, k)
		return b / (1 - rho*(1-b))
	}

	sum := 0.0
	for n := 0; n < k; n++ {
		sum += math.Pow(a, float64(n)) / m.factorials[n]
	}
	tail := math.Pow(a, float64(k)) / m.factorials[k] / (1 - rho)

	p0 := 1 / (sum + tail)
	return tail * p0
}

// erlangB is the blocking probability of an M/M/k/k system, built up one
// server at a time: B(n) = a*B(n-1) / (n + a*B(n-1)). Every step stays in [0, 1].
func erlangB(a float64, k int) float64 {
	b := 1.0
	for n := 1; n <= k; n++ {
		b = a * b / (float64(n) + a*b)
	}
	return b
}

// confidenceInterval applies the normal-approximation margin 1.96*W/sqrt(n).
// This is a heuristic, not derived from the queue's waiting-time variance.
func confidenceInterval(w float64, sampleCount int) (float64, float64) {
	n := sampleCount
	if n < 1 {
		n = 1
	}
	margin := z95 * w / math.Sqrt(float64(n))
	return math.Max(0, w-margin), w + margin
}

// Classify maps utilization to a congestion status
func Classify(rho float64) entities.WaitStatus {
	switch {
	case rho < 0.5:
		return entities.WaitStatusLow
	case rho < 0.75:
		return entities.WaitStatusMedium
	case rho < OverloadThreshold:
		return entities.WaitStatusHigh
	default:
		return entities.WaitStatusOverloaded
	}
}
