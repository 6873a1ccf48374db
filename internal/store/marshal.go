package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/stepwise/internal/ir"
)

// marshalSummary converts a summary to canonical JSON TEXT for storage.
// These are the bytes ir.SummaryDigest hashes.
func marshalSummary(s ir.Summary) (string, error) {
	data, err := ir.MarshalCanonical(s.Object())
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	return string(data), nil
}

// summaryJSON mirrors the key layout of ir.Summary.Object.
type summaryJSON struct {
	Step       int64            `json:"step"`
	Start      int64            `json:"start"`
	Duration   int64            `json:"duration"`
	Agents     int64            `json:"agents"`
	Locations  int64            `json:"locations"`
	Outcomes   int64            `json:"outcomes"`
	Exposures  int64            `json:"exposures"`
	Reports    int64            `json:"reports"`
	Positives  int64            `json:"positives"`
	Visits     int64            `json:"visits"`
	VisitTime  int64            `json:"visit_time"`
	OutcomeSum int64            `json:"outcome_sum"`
	VisitSum   int64            `json:"visit_sum"`
	States     map[string]int64 `json:"states"`
}

// unmarshalSummary parses canonical JSON TEXT back into a summary.
func unmarshalSummary(data string) (ir.Summary, error) {
	var j summaryJSON
	if err := json.Unmarshal([]byte(data), &j); err != nil {
		return ir.Summary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	if j.States == nil {
		j.States = map[string]int64{}
	}
	return ir.Summary{
		Step:        j.Step,
		Window:      ir.Timestep{Start: j.Start, Duration: j.Duration},
		Agents:      j.Agents,
		Locations:   j.Locations,
		Outcomes:    j.Outcomes,
		Exposures:   j.Exposures,
		Reports:     j.Reports,
		Positives:   j.Positives,
		Visits:      j.Visits,
		VisitTime:   j.VisitTime,
		OutcomeSum:  j.OutcomeSum,
		VisitSum:    j.VisitSum,
		StateCounts: j.States,
	}, nil
}
