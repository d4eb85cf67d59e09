package retrieval

// Gate decides from the top result alone whether retrieval is confident
// enough to answer.
type Gate struct {
	// Threshold is the largest top-1 distance that is still answered.
	Threshold float64
}

// NewGate returns a Gate with the given threshold.
func NewGate(threshold float64) Gate {
	return Gate{Threshold: threshold}
}

// ShouldRefuse reports whether results are too weak to answer from. It
// refuses when there are no results or when the closest distance is strictly
// greater than the threshold; a distance equal to it is accepted. results
// must be ordered by ascending distance.
func (g Gate) ShouldRefuse(results []Result) bool {
	if len(results) == 0 {
		return true
	}
	return results[0].Distance > g.Threshold
}

// Decide is ShouldRefuse plus a decision metric.
func (g Gate) Decide(results []Result) bool {
	refuse := g.ShouldRefuse(results)
	if refuse {
		GateDecisions.WithLabelValues(decisionRefuse).Inc()
	} else {
		GateDecisions.WithLabelValues(decisionAccept).Inc()
	}
	return refuse
}
