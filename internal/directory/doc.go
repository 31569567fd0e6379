// Package directory resolves customer emails to messaging-channel
// identities and records registrations. Lookup is a pure, case-sensitive
// read; email normalization happens once at the registration boundary.
package directory
