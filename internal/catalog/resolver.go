package catalog

import (
	"fmt"

	"github.com/ignite/delivery-relay/internal/domain"
)

// Resolver maps provider-specific product identifiers onto catalog keys.
// The mapping is many-to-one and static; an unmapped identifier is an
// expected outcome (unrelated purchase categories), not an error.
type Resolver struct {
	mapping map[string]domain.ProductKey
}

// NewResolver builds the resolver from the configured mapping and verifies
// every mapping target exists in the catalog, so a resolved key can never
// miss the catalog at delivery time.
func NewResolver(mapping map[string]string, cat *Catalog) (*Resolver, error) {
	resolved := make(map[string]domain.ProductKey, len(mapping))
	for external, internal := range mapping {
		key := domain.ProductKey(internal)
		if !cat.Has(key) {
			return nil, fmt.Errorf("mapping %q → %q: %w", external, internal, ErrUnknownProduct)
		}
		resolved[external] = key
	}
	return &Resolver{mapping: resolved}, nil
}

// Resolve returns the catalog key for an external product ID. The second
// return value is false when the ID has no mapping.
func (r *Resolver) Resolve(externalID string) (domain.ProductKey, bool) {
	key, ok := r.mapping[externalID]
	return key, ok
}
