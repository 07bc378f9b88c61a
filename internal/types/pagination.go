package types

// PageInfo contains pagination metadata for list responses.
type PageInfo struct {
	HasMore    bool `json:"has_more"`
	Limit      int  `json:"limit"`
	TotalItems *int `json:"total_items,omitempty"`
}

// ListResponse is a generic paginated response wrapper.
type ListResponse[T any] struct {
	Data     []T      `json:"data"`
	PageInfo PageInfo `json:"pagination"`
}

// Pagination bounds for list endpoints.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// ClampLimit normalizes a caller-supplied page size into [1, MaxPageLimit].
// Zero or negative means DefaultPageLimit.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	return min(limit, MaxPageLimit)
}
