package domain

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// PerfectScore is the starting value before any impacts apply.
	PerfectScore = 100
	// MinScore is the clamping floor.
	MinScore = 0
)

// ScoringInput is one email's classification output: which indicators the
// upstream classifier triggered, plus the number of distinct topics it found.
// Inputs are read-only to the scorer.
type ScoringInput struct {
	Indicators map[string]bool
	TopicCount int
}

// AppliedImpact records one impact that actually changed the raw score.
type AppliedImpact struct {
	Indicator string `json:"indicator"`
	Points    int    `json:"points"`
}

// ScoreResult is the outcome of one scoring call.
type ScoreResult struct {
	Score       int             `json:"score"`
	Applied     []AppliedImpact `json:"applied"`
	Explanation string          `json:"explanation"`
}

// UnknownIndicatorError reports a triggered indicator that is absent from the
// active catalog. This is configuration drift between the classifier's
// vocabulary and the scoring table, never a transient condition.
type UnknownIndicatorError struct {
	Name string
}

func (e *UnknownIndicatorError) Error() string {
	return fmt.Sprintf("unknown indicator %q not present in impact catalog", e.Name)
}

// Score computes the confidence score for one classified email.
// This is a pure domain function with no I/O dependencies.
//
// The score starts at 100. Each triggered flat indicator adds its (negative)
// points once; per-unit indicators add points scaled by extra topics beyond
// the first. The accumulated raw value is clamped to [0, 100] once at the
// end. Applied impacts and the explanation follow catalog order, so permuting
// the input never changes the output.
func Score(input ScoringInput, catalog *ImpactCatalog) (*ScoreResult, error) {
	// Reject unknown names before applying anything: a partial result would
	// corrupt the audit trail. Sorted so the reported name is deterministic.
	var unknown []string
	for name, triggered := range input.Indicators {
		if triggered && !catalog.Contains(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &UnknownIndicatorError{Name: unknown[0]}
	}

	extraTopics := input.TopicCount - 1
	if extraTopics < 0 {
		extraTopics = 0
	}

	raw := PerfectScore
	var applied []AppliedImpact

	for _, entry := range catalog.entries {
		switch entry.Mode {
		case Flat:
			if input.Indicators[entry.Name] {
				raw += entry.Points
				applied = append(applied, AppliedImpact{Indicator: entry.Name, Points: entry.Points})
			}
		case PerUnit:
			if extraTopics > 0 {
				points := entry.Points * extraTopics
				raw += points
				applied = append(applied, AppliedImpact{Indicator: entry.Name, Points: points})
			}
		}
	}

	score := raw
	if score < MinScore {
		score = MinScore
	}
	if score > PerfectScore {
		score = PerfectScore
	}

	return &ScoreResult{
		Score:       score,
		Applied:     applied,
		Explanation: buildExplanation(applied, raw, score),
	}, nil
}

func buildExplanation(applied []AppliedImpact, raw, score int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("base %d", PerfectScore))
	for _, a := range applied {
		sb.WriteString(fmt.Sprintf("; %s %+d", a.Indicator, a.Points))
	}

	if raw != score {
		sb.WriteString(fmt.Sprintf("; raw %d clamped to %d", raw, score))
	} else {
		sb.WriteString(fmt.Sprintf("; final %d", score))
	}

	return sb.String()
}
