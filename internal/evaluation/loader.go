package evaluation

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/zatekoja/waittime/internal/domain/entities"
)

// LoadScenarios reads and parses a scenario set from a JSON file.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios file: %w", err)
	}

	var scenarios []Scenario
	if err := json.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}

	return scenarios, nil
}

var validStatuses = map[entities.WaitStatus]bool{
	entities.WaitStatusLow:        true,
	entities.WaitStatusMedium:     true,
	entities.WaitStatusHigh:       true,
	entities.WaitStatusOverloaded: true,
}

// ValidateScenarios checks that all scenarios have required fields and valid
// values. Facility parameters are not checked here; an invalid facility is
// something a scenario may want to exercise.
func ValidateScenarios(scenarios []Scenario) error {
	seen := make(map[string]struct{}, len(scenarios))

	for i, s := range scenarios {
		if s.ID == "" {
			return fmt.Errorf("scenario at index %d: missing id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("scenario at index %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = struct{}{}

		if len(s.Steps) == 0 {
			return fmt.Errorf("scenario %q: no steps", s.ID)
		}
		if s.Alpha < 0 || s.Alpha > 1 {
			return fmt.Errorf("scenario %q: alpha %v outside [0, 1]", s.ID, s.Alpha)
		}
		for j, step := range s.Steps {
			if step.Rate < 0 || math.IsNaN(step.Rate) || math.IsInf(step.Rate, 0) {
				return fmt.Errorf("scenario %q step %d: invalid rate %v", s.ID, j, step.Rate)
			}
			if step.ExpectStatus != "" && !validStatuses[step.ExpectStatus] {
				return fmt.Errorf("scenario %q step %d: invalid status %q", s.ID, j, step.ExpectStatus)
			}
		}
	}

	return nil
}
