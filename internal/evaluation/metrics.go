package evaluation

// Agreement computes the fraction of positions where actual matches expected.
// Positions with an empty expectation are skipped. Returns 0.0 if nothing was
// expected.
func Agreement(expected, actual []string) float64 {
	checked, matched := 0, 0
	for i, want := range expected {
		if want == "" {
			continue
		}
		checked++
		if i < len(actual) && actual[i] == want {
			matched++
		}
	}
	if checked == 0 {
		return 0.0
	}
	return float64(matched) / float64(checked)
}

// PublishRatio computes the fraction of steps that produced an update.
// Returns 0.0 for no steps.
func PublishRatio(published []bool) float64 {
	if len(published) == 0 {
		return 0.0
	}
	n := 0
	for _, p := range published {
		if p {
			n++
		}
	}
	return float64(n) / float64(len(published))
}
