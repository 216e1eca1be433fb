package classify

import (
	"strconv"
	"strings"

	"github.com/stco/stationrecon/internal/domain/model"
)

// Anomalous implements the confidence rule: a value is anomalous unless it
// equals the literal "false" case-insensitively. No trimming is applied, so
// "False " (trailing space), "", and absent values all count as anomalous.
// The asymmetry is intentional and must not be "fixed".
func Anomalous(confidence string) bool {
	return !strings.EqualFold(confidence, "false")
}

// ParseSeverity parses the upstream severity bucket. Severity is faceting
// input only; it is never recomputed here.
func ParseSeverity(raw string) *int {
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &n
}

// SplitFlags splits the comma-delimited flag field into its non-empty
// tokens, preserving upstream order.
func SplitFlags(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// TabGroup derives the coarse default facet label "<tier>|<bucket>".
func TabGroup(availability string, anomalous bool) string {
	bucket := "ok"
	if anomalous {
		bucket = "flagged"
	}
	return availability + "|" + bucket
}

// SetupSnapshot carries the confidence values of a prior setup run, keyed by
// composite grid key.
type SetupSnapshot map[string]string

// Result summarizes a classification pass.
type Result struct {
	// HasSetupData is the run-level marker: true when at least one cell
	// matched the setup snapshot. Setup facets stay hidden without it.
	HasSetupData bool
	Anomalous    int
	Flagged      int
}

// Apply classifies cells in place: anomaly state, severity, flags, and tab
// group, plus the setup comparison when a snapshot is supplied.
func Apply(cells []model.JoinedCell, setup SetupSnapshot) Result {
	var res Result
	for i := range cells {
		c := &cells[i]
		if c.Planned != nil {
			c.Confidence = c.Planned.Confidence
			c.Severity = ParseSeverity(c.Planned.SeverityRaw)
			c.Flags = SplitFlags(c.Planned.FlagsRaw)
		}
		c.Anomalous = Anomalous(c.Confidence)
		c.TabGroup = TabGroup(c.Availability, c.Anomalous)

		if c.Anomalous {
			res.Anomalous++
		}
		if c.Flagged() {
			res.Flagged++
		}

		if setup == nil {
			continue
		}
		prior, ok := setup[c.Key.String()]
		if !ok {
			continue
		}
		res.HasSetupData = true
		changed := c.Confidence != prior
		c.ConfidenceChanged = &changed
		setupAnomalous := Anomalous(prior)
		c.SetupAnomalous = &setupAnomalous
	}
	return res
}
