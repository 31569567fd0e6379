package catalog

import "errors"

// ErrUnknownProduct is returned by Lookup for keys outside the catalog.
// Reaching it from a resolved key means the catalog and the resolver
// mapping disagree, which startup validation is supposed to rule out.
var ErrUnknownProduct = errors.New("product not in catalog")
