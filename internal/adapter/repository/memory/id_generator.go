package memory

import (
	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates ULID-based account IDs. ULIDs sort lexicographically by
// creation time, so the ledger's ascending-id lock order is also creation order.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate generates a new ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}
