package model

// PlannedRecord is one row of the automated planned-forecast stream. Rows are
// keyed by station and station-local cutoff time; the normalizer fills in the
// UTC cutoff from the station timezone.
type PlannedRecord struct {
	Station     string  `yaml:"station" json:"station"`
	Date        string  `yaml:"date" json:"date"`
	CutoffLocal string  `yaml:"cutoff_local" json:"cutoff_local"`
	CutoffUTC   string  `yaml:"cutoff_utc" json:"cutoff_utc"`
	Forecast    float64 `yaml:"forecast" json:"forecast"`
	SoftCap     float64 `yaml:"soft_cap" json:"soft_cap"`
	HardCap     float64 `yaml:"hard_cap" json:"hard_cap"`
	Utilization float64 `yaml:"utilization" json:"utilization"`
	// Confidence is the raw upstream confidence field, preserved verbatim.
	// Classification treats any value other than the literal "false"
	// (case-insensitive, no trimming) as anomalous.
	Confidence string `yaml:"confidence" json:"confidence"`
	// SeverityRaw is the upstream severity bucket field, empty when absent.
	SeverityRaw string `yaml:"severity" json:"severity"`
	// FlagsRaw is the comma-delimited upstream flag field, empty when absent.
	FlagsRaw string `yaml:"flags" json:"flags"`
}

// OverrideRecord is one row of the manual-override stream. Its timestamp is an
// epoch-milliseconds instant; the station timezone converts it to the local
// date and cutoff time it applies to.
type OverrideRecord struct {
	Station     string  `yaml:"station" json:"station"`
	EpochMillis int64   `yaml:"epoch_millis" json:"epoch_millis"`
	Date        string  `yaml:"date" json:"date"`
	CutoffLocal string  `yaml:"cutoff_local" json:"cutoff_local"`
	CutoffUTC   string  `yaml:"cutoff_utc" json:"cutoff_utc"`
	// MatchDate is the historical comparison date this override references,
	// used to classify telemetry groups as "match".
	MatchDate   string  `yaml:"match_date" json:"match_date"`
	Author      string  `yaml:"author" json:"author"`
	Original    float64 `yaml:"original" json:"original"`
	Adjusted    float64 `yaml:"adjusted" json:"adjusted"`
	ProposedCap float64 `yaml:"proposed_cap" json:"proposed_cap"`
	Reason      string  `yaml:"reason" json:"reason"`
}

// Availability tiers for a joined cell. A cell carrying only an override is
// "list-only", only a planned row is "vp-only", and both is "vp+list".
const (
	AvailabilityListOnly = "list-only"
	AvailabilityVPOnly   = "vp-only"
	AvailabilityBoth     = "vp+list"
)

// JoinedCell is the product of the planned/override full outer join plus
// classification. It is the primary dataset of a run: if no cells exist at
// all, downstream stages hard-fail.
type JoinedCell struct {
	Key      GridKey
	Planned  *PlannedRecord
	Override *OverrideRecord

	// Availability is one of the Availability* tier constants.
	Availability string
	// Confidence is the raw upstream confidence value carried through.
	Confidence string
	// Anomalous is true unless Confidence is the case-insensitive literal
	// "false".
	Anomalous bool
	// Severity is the parsed upstream severity bucket, nil when the field
	// was absent or unparseable.
	Severity *int
	// Flags holds the non-empty comma-split tokens of the upstream flag
	// field, in upstream order.
	Flags []string
	// TabGroup is "<tier>|<bucket>" where bucket is "flagged" or "ok".
	TabGroup string
	// ConfidenceChanged is set only on setup-comparison runs: true when the
	// cell's confidence value differs from the prior snapshot, nil
	// otherwise.
	ConfidenceChanged *bool
	// SetupAnomalous is set only on setup-comparison runs: the anomaly
	// state of the prior snapshot's confidence value.
	SetupAnomalous *bool
}

// Flagged reports whether the cell carries at least one flag token.
func (c *JoinedCell) Flagged() bool { return len(c.Flags) > 0 }
