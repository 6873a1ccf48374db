package ir

// Summary aggregates what the observers saw during one timestep.
//
// Counts are totals over all entities. OutcomeSum and VisitSum are
// order-independent checksums of the per-entity counts (sum of id*count),
// so a misrouted message changes the digest even when totals match.
type Summary struct {
	Step        int64            `json:"step"`
	Window      Timestep         `json:"window"`
	Agents      int64            `json:"agents"`
	Locations   int64            `json:"locations"`
	Outcomes    int64            `json:"outcomes"`
	Exposures   int64            `json:"exposures"`
	Reports     int64            `json:"reports"`
	Positives   int64            `json:"positives"`
	Visits      int64            `json:"visits"`
	VisitTime   int64            `json:"visit_time"`
	OutcomeSum  int64            `json:"outcome_sum"`
	VisitSum    int64            `json:"visit_sum"`
	StateCounts map[string]int64 `json:"state_counts"`
}

// Object converts the summary to its canonical value form.
func (s Summary) Object() Object {
	states := make(Object, len(s.StateCounts))
	for k, v := range s.StateCounts {
		states[k] = Int(v)
	}
	return Object{
		"step":        Int(s.Step),
		"start":       Int(s.Window.Start),
		"duration":    Int(s.Window.Duration),
		"agents":      Int(s.Agents),
		"locations":   Int(s.Locations),
		"outcomes":    Int(s.Outcomes),
		"exposures":   Int(s.Exposures),
		"reports":     Int(s.Reports),
		"positives":   Int(s.Positives),
		"visits":      Int(s.Visits),
		"visit_time":  Int(s.VisitTime),
		"outcome_sum": Int(s.OutcomeSum),
		"visit_sum":   Int(s.VisitSum),
		"states":      states,
	}
}

// Merge adds the counters of o into s. Step and Window are left untouched.
func (s *Summary) Merge(o Summary) {
	s.Agents += o.Agents
	s.Locations += o.Locations
	s.Outcomes += o.Outcomes
	s.Exposures += o.Exposures
	s.Reports += o.Reports
	s.Positives += o.Positives
	s.Visits += o.Visits
	s.VisitTime += o.VisitTime
	s.OutcomeSum += o.OutcomeSum
	s.VisitSum += o.VisitSum
	if len(o.StateCounts) > 0 && s.StateCounts == nil {
		s.StateCounts = make(map[string]int64, len(o.StateCounts))
	}
	for k, v := range o.StateCounts {
		s.StateCounts[k] += v
	}
}
