package usecase

const (
	// DefaultHistoryLimit is the page size used when a caller does not pass one.
	DefaultHistoryLimit = 20

	// MaxListLimit caps list and history page sizes.
	MaxListLimit = 100
)
