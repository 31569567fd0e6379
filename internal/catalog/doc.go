// Package catalog holds the closed product catalog and the resolver that
// maps provider product IDs onto catalog keys. Both are built once from
// configuration at startup and are immutable afterwards, so they are safe
// for concurrent use without locking.
package catalog
