package evaluation

import "github.com/zatekoja/waittime/internal/domain/entities"

// Scenario is a scripted sequence of arrival rates replayed against one
// facility, with optional expectations per step.
type Scenario struct {
	ID           string                  `json:"id"`
	Description  string                  `json:"description"`
	Facility     entities.FacilityConfig `json:"facility"`
	Alpha        float64                 `json:"alpha,omitempty"`         // 0 uses the default
	ThresholdPct float64                 `json:"threshold_pct,omitempty"` // 0 uses the default
	Steps        []Step                  `json:"steps"`
}

// Step is one observation fed to the pipeline
type Step struct {
	Rate          float64             `json:"rate"`
	Samples       int                 `json:"samples"`
	Servers       int                 `json:"servers,omitempty"` // overrides the facility for this step
	ExpectPublish *bool               `json:"expect_publish,omitempty"`
	ExpectStatus  entities.WaitStatus `json:"expect_status,omitempty"`
}

// StepResult is the pipeline outcome of a step
type StepResult struct {
	Index        int
	SmoothedRate float64
	Result       entities.EstimationResult
	Published    bool
	Err          error
	Mismatches   []string
}

// ScenarioResult holds the outcome of one scenario
type ScenarioResult struct {
	ID         string
	Steps      []StepResult
	Published  int
	Suppressed int
	Passed     bool
}

// Summary holds aggregate numbers across scenarios
type Summary struct {
	TotalScenarios    int
	PassedScenarios   int
	TotalSteps        int
	PublishRatio      float64
	PublishAgreement  float64
	StatusAgreement   float64
	ByStatus          map[entities.WaitStatus]int
	FailedScenarioIDs []string
}
