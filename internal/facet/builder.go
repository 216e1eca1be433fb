package facet

import (
	"sort"
	"strconv"
	"strings"

	"github.com/stco/stationrecon/internal/domain/model"
)

// Facet keys. Flag and severity facets carry their value after the prefix.
const (
	KeyAll               = "all"
	KeyFlagged           = "flagged"
	KeyNotFlagged        = "not-flagged"
	KeySetupAnomaly      = "setup-anomaly"
	KeyConfidenceChanged = "confidence-changed"

	flagPrefix     = "flag:"
	severityPrefix = "severity:"
)

// Build produces the ordered facet list over one run's cells: "All" first,
// then per-flag facets alphabetically, the anomaly pair when nonzero,
// severity buckets ascending, and the setup facets gated on the run-level
// marker. Counts always agree with the Predicate of the same key.
func Build(cells []model.JoinedCell, hasSetupData bool) []model.Facet {
	facets := []model.Facet{{Key: KeyAll, Label: "All", Count: len(cells)}}

	flagCounts := map[string]int{}
	severityCounts := map[int]int{}
	var anomalous, notAnomalous, setupAnomaly, confidenceChanged int
	for i := range cells {
		c := &cells[i]
		seen := map[string]bool{}
		for _, tok := range c.Flags {
			// A repeated token counts its cell once.
			if !seen[tok] {
				flagCounts[tok]++
				seen[tok] = true
			}
		}
		if c.Anomalous {
			anomalous++
		} else {
			notAnomalous++
		}
		if c.Severity != nil {
			severityCounts[*c.Severity]++
		}
		if c.SetupAnomalous != nil && *c.SetupAnomalous {
			setupAnomaly++
		}
		if c.ConfidenceChanged != nil && *c.ConfidenceChanged {
			confidenceChanged++
		}
	}

	tokens := make([]string, 0, len(flagCounts))
	for tok := range flagCounts {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	for _, tok := range tokens {
		facets = append(facets, model.Facet{Key: flagPrefix + tok, Label: tok, Count: flagCounts[tok]})
	}

	if anomalous > 0 {
		facets = append(facets, model.Facet{Key: KeyFlagged, Label: "flagged", Count: anomalous})
	}
	if notAnomalous > 0 {
		facets = append(facets, model.Facet{Key: KeyNotFlagged, Label: "not flagged", Count: notAnomalous})
	}

	severities := make([]int, 0, len(severityCounts))
	for sev := range severityCounts {
		severities = append(severities, sev)
	}
	sort.Ints(severities)
	for _, sev := range severities {
		label := "severity " + strconv.Itoa(sev)
		facets = append(facets, model.Facet{Key: severityPrefix + strconv.Itoa(sev), Label: label, Count: severityCounts[sev]})
	}

	if hasSetupData {
		if setupAnomaly > 0 {
			facets = append(facets, model.Facet{Key: KeySetupAnomaly, Label: "setup anomaly", Count: setupAnomaly})
		}
		if confidenceChanged > 0 {
			facets = append(facets, model.Facet{Key: KeyConfidenceChanged, Label: "confidence changed", Count: confidenceChanged})
		}
	}
	return facets
}

// Predicate returns the membership test of a facet key. Unknown keys match
// nothing; KeyAll is the identity.
func Predicate(key string) func(*model.JoinedCell) bool {
	switch {
	case key == KeyAll:
		return func(*model.JoinedCell) bool { return true }
	case key == KeyFlagged:
		return func(c *model.JoinedCell) bool { return c.Anomalous }
	case key == KeyNotFlagged:
		return func(c *model.JoinedCell) bool { return !c.Anomalous }
	case key == KeySetupAnomaly:
		return func(c *model.JoinedCell) bool { return c.SetupAnomalous != nil && *c.SetupAnomalous }
	case key == KeyConfidenceChanged:
		return func(c *model.JoinedCell) bool { return c.ConfidenceChanged != nil && *c.ConfidenceChanged }
	case strings.HasPrefix(key, flagPrefix):
		tok := strings.TrimPrefix(key, flagPrefix)
		return func(c *model.JoinedCell) bool {
			for _, f := range c.Flags {
				if f == tok {
					return true
				}
			}
			return false
		}
	case strings.HasPrefix(key, severityPrefix):
		sev, err := strconv.Atoi(strings.TrimPrefix(key, severityPrefix))
		if err != nil {
			return func(*model.JoinedCell) bool { return false }
		}
		return func(c *model.JoinedCell) bool { return c.Severity != nil && *c.Severity == sev }
	default:
		return func(*model.JoinedCell) bool { return false }
	}
}

// Filter returns the cells matching a facet key, preserving input order.
func Filter(cells []model.JoinedCell, key string) []model.JoinedCell {
	pred := Predicate(key)
	var out []model.JoinedCell
	for i := range cells {
		if pred(&cells[i]) {
			out = append(out, cells[i])
		}
	}
	return out
}
