package evaluation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/estimation"
)

// Runner replays scenarios through a fresh estimation pipeline each.
type Runner struct {
	defaults estimation.PipelineConfig
}

// NewRunner creates a runner. Scenario alpha and threshold override defaults.
func NewRunner(defaults estimation.PipelineConfig) *Runner {
	return &Runner{defaults: defaults}
}

// Run replays every scenario and aggregates the outcome
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*Summary, []ScenarioResult, error) {
	summary := &Summary{
		TotalScenarios: len(scenarios),
		ByStatus:       make(map[entities.WaitStatus]int),
	}

	var (
		results                                            []ScenarioResult
		published                                          []bool
		expectPublish, gotPublish, expectStatus, gotStatus []string
	)

	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		res := r.runScenario(sc)
		results = append(results, res)

		for i, step := range res.Steps {
			summary.TotalSteps++
			published = append(published, step.Published)
			if step.Err == nil {
				summary.ByStatus[step.Result.Status]++
			}

			want := sc.Steps[i]
			if want.ExpectPublish != nil {
				expectPublish = append(expectPublish, strconv.FormatBool(*want.ExpectPublish))
			} else {
				expectPublish = append(expectPublish, "")
			}
			gotPublish = append(gotPublish, strconv.FormatBool(step.Published))
			expectStatus = append(expectStatus, string(want.ExpectStatus))
			gotStatus = append(gotStatus, string(step.Result.Status))
		}

		if res.Passed {
			summary.PassedScenarios++
		} else {
			summary.FailedScenarioIDs = append(summary.FailedScenarioIDs, sc.ID)
		}
	}

	summary.PublishRatio = PublishRatio(published)
	summary.PublishAgreement = Agreement(expectPublish, gotPublish)
	summary.StatusAgreement = Agreement(expectStatus, gotStatus)
	return summary, results, nil
}

func (r *Runner) runScenario(sc Scenario) ScenarioResult {
	cfg := r.defaults
	if sc.Alpha > 0 {
		cfg.Alpha = sc.Alpha
	}
	if sc.ThresholdPct > 0 {
		cfg.ThresholdPct = sc.ThresholdPct
	}
	pipeline := estimation.NewEstimationPipeline(cfg)

	key := entities.FacilityKey(sc.ID)
	start := time.Unix(0, 0).UTC()
	res := ScenarioResult{ID: sc.ID, Passed: true}

	for i, step := range sc.Steps {
		facility := sc.Facility
		if step.Servers != 0 {
			facility.Servers = step.Servers
		}

		decision, err := pipeline.Process(entities.Observation{
			Facility:    key,
			RawRate:     step.Rate,
			SampleCount: step.Samples,
			ObservedAt:  start.Add(time.Duration(i) * time.Minute),
		}, facility)

		sr := StepResult{
			Index:        i,
			SmoothedRate: decision.SmoothedRate,
			Result:       decision.Result,
			Published:    decision.ShouldPublish,
			Err:          err,
		}
		if err != nil {
			sr.Mismatches = append(sr.Mismatches, fmt.Sprintf("error: %v", err))
		}
		if step.ExpectPublish != nil && *step.ExpectPublish != sr.Published {
			sr.Mismatches = append(sr.Mismatches, fmt.Sprintf("publish: want %v, got %v", *step.ExpectPublish, sr.Published))
		}
		if step.ExpectStatus != "" && step.ExpectStatus != sr.Result.Status {
			sr.Mismatches = append(sr.Mismatches, fmt.Sprintf("status: want %s, got %s", step.ExpectStatus, sr.Result.Status))
		}

		if sr.Published {
			res.Published++
		} else if err == nil {
			res.Suppressed++
		}
		if len(sr.Mismatches) > 0 {
			res.Passed = false
		}
		res.Steps = append(res.Steps, sr)
	}

	return res
}
