package models

// -----------------------------------------------------------------------------
// Real-time subscription state (owned by the hub)
// -----------------------------------------------------------------------------

// MDataType identifies what a subscription wants pushed.
type MDataType string

const (
	DataTypeCounts       MDataType = "counts"
	DataTypePrices       MDataType = "prices"
	DataTypeCorrelations MDataType = "correlations"
	DataTypeAll          MDataType = "all"
)

// -----------------------------------------------------------------------------

// MSubscription lives exactly as long as its connection. Filters hold
// locations for counts, symbols for prices, or both for correlations;
// an empty filter set matches everything.
type MSubscription struct {
	ID       string              `json:"id"`
	ConnID   string              `json:"conn_id"`
	DataType MDataType           `json:"data_type"`
	Filters  map[string]struct{} `json:"-"`
}

// -----------------------------------------------------------------------------

// Matches reports whether any of the given keys intersects the filter set.
// No filters means match-all.
func (s *MSubscription) Matches(keys []string) bool {
	if len(s.Filters) == 0 {
		return true
	}
	for _, k := range keys {
		if _, ok := s.Filters[k]; ok {
			return true
		}
	}
	return false
}
