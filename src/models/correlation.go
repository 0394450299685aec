package models

// -----------------------------------------------------------------------------
// Correlation output types
// -----------------------------------------------------------------------------

// MSignificance is the coarse qualitative label derived from coefficient
// magnitude and p-value.
type MSignificance string

const (
	SignificanceNone   MSignificance = "none"
	SignificanceLow    MSignificance = "low"
	SignificanceMedium MSignificance = "medium"
	SignificanceHigh   MSignificance = "high"
)

// -----------------------------------------------------------------------------

// MAlignedBucket is one paired observation on the common time grid. Only
// buckets where both series contributed at least one sample are kept.
type MAlignedBucket struct {
	BucketStart int64   `json:"bucket_start"`
	BucketEnd   int64   `json:"bucket_end"`
	PigeonAvg   float64 `json:"pigeon_avg"`
	CryptoAvg   float64 `json:"crypto_avg"`
	PigeonCount int     `json:"pigeon_count"`
	CryptoCount int     `json:"crypto_count"`
}

// -----------------------------------------------------------------------------

// MCorrelationResult is recomputed per request and never persisted beyond
// the response and the archive retention window.
type MCorrelationResult struct {
	Coefficient  float64       `json:"coefficient"` // in [-1, 1]
	PValue       float64       `json:"p_value"`     // in [0, 1]
	Significance MSignificance `json:"significance"`
	Commentary   string        `json:"commentary,omitempty"`
	WindowStart  int64         `json:"window_start"`
	WindowEnd    int64         `json:"window_end"`
	SampleCount  int           `json:"sample_count"` // paired buckets used
}

// -----------------------------------------------------------------------------

// MSignificanceLevel is one row of the configurable significance policy
// table. Levels are evaluated in order; first match wins.
type MSignificanceLevel struct {
	Name              MSignificance `yaml:"name" json:"name"`
	MinAbsCoefficient float64       `yaml:"min_abs_coefficient" json:"min_abs_coefficient"`
	MaxPValue         float64       `yaml:"max_p_value" json:"max_p_value"`
}

// DefaultSignificanceLevels mirrors the thresholds the dashboard shipped
// with. Treated as policy, not law; overridable from config.
func DefaultSignificanceLevels() []MSignificanceLevel {
	return []MSignificanceLevel{
		{Name: SignificanceHigh, MinAbsCoefficient: 0.7, MaxPValue: 0.05},
		{Name: SignificanceMedium, MinAbsCoefficient: 0.4, MaxPValue: 0.1},
		{Name: SignificanceLow, MinAbsCoefficient: 0.1, MaxPValue: 0.2},
	}
}
