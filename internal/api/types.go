package api

// Page sizes accepted by the history endpoints.
const (
	MaxCandlesPerPage = 10000
	MaxTradesPerPage  = 10000
)

// HistoryOptions selects a time range from a history endpoint.
type HistoryOptions struct {
	Start int64 // ms since epoch, inclusive
	End   int64 // ms since epoch, inclusive
	Limit int   // Page size; 0 means the endpoint maximum
}

// rawRow is one positional row as returned by the venue.
type rawRow []float64
