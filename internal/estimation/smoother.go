package estimation

// DefaultAlpha is the EMA weight given to the newest arrival-rate sample.
const DefaultAlpha = 0.3

// ArrivalRateSmoother is an exponential moving average over raw arrival
// rates for a single facility. It is not safe for concurrent use; the
// pipeline serializes access per facility.
type ArrivalRateSmoother struct {
	alpha    float64
	smoothed float64
	set      bool
}

// NewArrivalRateSmoother creates a smoother. Alpha outside (0,1] falls back
// to DefaultAlpha.
func NewArrivalRateSmoother(alpha float64) *ArrivalRateSmoother {
	if alpha <= 0 || alpha > 1 {
		alpha = DefaultAlpha
	}
	return &ArrivalRateSmoother{alpha: alpha}
}

// Update folds raw into the average and returns the new smoothed rate.
// The first sample is returned unchanged.
func (s *ArrivalRateSmoother) Update(raw float64) float64 {
	if !s.set {
		s.smoothed = raw
		s.set = true
		return raw
	}
	s.smoothed = s.alpha*raw + (1-s.alpha)*s.smoothed
	return s.smoothed
}

// Current returns the last smoothed rate and false before the first update.
func (s *ArrivalRateSmoother) Current() (float64, bool) {
	return s.smoothed, s.set
}

// Alpha returns the smoothing factor
func (s *ArrivalRateSmoother) Alpha() float64 {
	return s.alpha
}
