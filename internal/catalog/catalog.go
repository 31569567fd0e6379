package catalog

import (
	"fmt"
	"sort"

	"github.com/ignite/delivery-relay/internal/config"
	"github.com/ignite/delivery-relay/internal/domain"
)

// Catalog is the closed set of deliverable product bundles.
type Catalog struct {
	bundles map[domain.ProductKey]domain.ProductBundle
}

// New builds the catalog from configuration and enforces well-formedness:
// every product must carry at least one file and a non-empty welcome
// message. A violation is a configuration defect and fails startup rather
// than surfacing mid-delivery.
func New(cfg config.CatalogConfig) (*Catalog, error) {
	if len(cfg.Products) == 0 {
		return nil, fmt.Errorf("catalog has no products")
	}

	bundles := make(map[domain.ProductKey]domain.ProductBundle, len(cfg.Products))
	for name, p := range cfg.Products {
		if len(p.Files) == 0 {
			return nil, fmt.Errorf("product %q has no files", name)
		}
		if p.Message == "" {
			return nil, fmt.Errorf("product %q has no welcome message", name)
		}
		files := make([]domain.FileRef, 0, len(p.Files))
		for _, f := range p.Files {
			if f.Key == "" {
				return nil, fmt.Errorf("product %q has a file with no key", name)
			}
			filename := f.Filename
			if filename == "" {
				filename = f.Key
			}
			files = append(files, domain.FileRef{Key: f.Key, Filename: filename})
		}
		bundles[domain.ProductKey(name)] = domain.ProductBundle{
			Files:           files,
			WelcomeTemplate: p.Message,
		}
	}

	return &Catalog{bundles: bundles}, nil
}

// Lookup returns the bundle for a catalog key. Pure read, no side effects.
func (c *Catalog) Lookup(key domain.ProductKey) (domain.ProductBundle, error) {
	b, ok := c.bundles[key]
	if !ok {
		return domain.ProductBundle{}, fmt.Errorf("%w: %s", ErrUnknownProduct, key)
	}
	return b, nil
}

// Has reports whether the key is in the catalog.
func (c *Catalog) Has(key domain.ProductKey) bool {
	_, ok := c.bundles[key]
	return ok
}

// Keys returns all catalog keys in sorted order.
func (c *Catalog) Keys() []domain.ProductKey {
	keys := make([]domain.ProductKey, 0, len(c.bundles))
	for k := range c.bundles {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
