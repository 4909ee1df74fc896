package evaluation

import (
	"context"
	"testing"

	"github.com/zatekoja/waittime/internal/domain/entities"
	"github.com/zatekoja/waittime/internal/estimation"
)

func boolPtr(b bool) *bool { return &b }

func TestRunner_SteadyStateAndJump(t *testing.T) {
	scenarios := []Scenario{
		{
			ID:       "steady-overload",
			Facility: entities.FacilityConfig{Servers: 8, ServiceRate: 0.5},
			Steps: []Step{
				{Rate: 4, Samples: 20, ExpectPublish: boolPtr(true), ExpectStatus: entities.WaitStatusOverloaded},
				{Rate: 4, Samples: 20, ExpectPublish: boolPtr(false)},
				{Rate: 4, Samples: 20, ExpectPublish: boolPtr(false)},
			},
		},
		{
			ID:       "jump",
			Alpha:    1,
			Facility: entities.FacilityConfig{Servers: 1, ServiceRate: 3},
			Steps: []Step{
				{Rate: 0, Samples: 1, ExpectPublish: boolPtr(true), ExpectStatus: entities.WaitStatusLow},
				{Rate: 2, Samples: 10, ExpectPublish: boolPtr(true), ExpectStatus: entities.WaitStatusMedium},
			},
		},
	}

	summary, results, err := NewRunner(estimation.DefaultPipelineConfig()).Run(context.Background(), scenarios)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, res := range results {
		if !res.Passed {
			for _, s := range res.Steps {
				t.Errorf("%s step %d: %v", res.ID, s.Index, s.Mismatches)
			}
		}
	}
	if summary.PassedScenarios != 2 {
		t.Errorf("expected 2 passed scenarios, got %d", summary.PassedScenarios)
	}
	if summary.TotalSteps != 5 {
		t.Errorf("expected 5 steps, got %d", summary.TotalSteps)
	}
	if results[0].Published != 1 || results[0].Suppressed != 2 {
		t.Errorf("expected 1 published and 2 suppressed, got %d/%d", results[0].Published, results[0].Suppressed)
	}
	if !almostEqual(summary.PublishAgreement, 1.0) {
		t.Errorf("expected publish agreement 1.0, got %f", summary.PublishAgreement)
	}
	if summary.ByStatus[entities.WaitStatusOverloaded] != 3 {
		t.Errorf("expected 3 overloaded steps, got %d", summary.ByStatus[entities.WaitStatusOverloaded])
	}
}

func TestRunner_ReportsMismatchesAndErrors(t *testing.T) {
	scenarios := []Scenario{
		{
			ID:       "wrong-expectation",
			Facility: entities.FacilityConfig{Servers: 1, ServiceRate: 3},
			Steps:    []Step{{Rate: 1, ExpectStatus: entities.WaitStatusHigh}},
		},
		{
			ID:       "invalid-facility",
			Facility: entities.FacilityConfig{Servers: 1, ServiceRate: 0},
			Steps:    []Step{{Rate: 1}},
		},
	}

	summary, results, err := NewRunner(estimation.DefaultPipelineConfig()).Run(context.Background(), scenarios)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.PassedScenarios != 0 {
		t.Errorf("expected no passed scenarios, got %d", summary.PassedScenarios)
	}
	if len(summary.FailedScenarioIDs) != 2 {
		t.Errorf("expected 2 failed ids, got %v", summary.FailedScenarioIDs)
	}
	if results[1].Steps[0].Err == nil {
		t.Error("expected error for zero service rate")
	}
	if results[1].Suppressed != 0 {
		t.Errorf("errored steps should not count as suppressed, got %d", results[1].Suppressed)
	}
}

func TestRunner_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewRunner(estimation.DefaultPipelineConfig()).Run(ctx, []Scenario{{ID: "a", Steps: []Step{{Rate: 1}}}})
	if err == nil {
		t.Error("expected context error")
	}
}
