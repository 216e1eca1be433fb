package timegrid

import "time"

// Bucket labels for the coarse timezone grouping used by run reports.
const (
	BucketEastern  = "Eastern"
	BucketCentral  = "Central"
	BucketMountain = "Mountain"
	BucketPacific  = "Pacific"
	BucketOther    = "Other"
)

var bucketByZone = map[string]string{
	"America/New_York":    BucketEastern,
	"America/Detroit":     BucketEastern,
	"America/Chicago":     BucketCentral,
	"America/Denver":      BucketMountain,
	"America/Phoenix":     BucketMountain,
	"America/Los_Angeles": BucketPacific,
}

// Bucket returns the coarse timezone bucket of a station. Zones outside the
// known set fall back to a standard-offset comparison against the continental
// buckets, then to BucketOther.
func (n *Normalizer) Bucket(station string) string {
	name, ok := n.table[station]
	if !ok {
		return BucketOther
	}
	if b, ok := bucketByZone[name]; ok {
		return b
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return BucketOther
	}
	// Compare standard (January) offsets so DST does not shift the bucket.
	_, offset := time.Date(2026, time.January, 15, 12, 0, 0, 0, loc).Zone()
	switch offset {
	case -5 * 3600:
		return BucketEastern
	case -6 * 3600:
		return BucketCentral
	case -7 * 3600:
		return BucketMountain
	case -8 * 3600:
		return BucketPacific
	default:
		return BucketOther
	}
}
