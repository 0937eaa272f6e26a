// Package options resolves the selectable choices of select fields, either
// from a manual list or from a remote JSON endpoint, and caches remote results
// for a fixed TTL keyed by the normalized source configuration.
//
// Two fields configured against the same endpoint share one cache entry
// because the key only depends on url, itemsPath, labelField, valueField and
// saveStrategy. Remote failures never escape LoadField; they become a
// field-scoped error message tracked next to the field's loading flag.
package options
