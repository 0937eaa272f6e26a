// Package runtime drives a live form: it keeps field values, re-evaluates the
// form's rules after every change, and reconciles the result with each
// control.
//
// Hidden fields are disabled, not cleared, so re-showing one restores its
// value. Rule errors live under RuleErrorKey next to the built-in validator
// errors. A value that a hide-options rule suppresses is purged, which starts
// a fresh evaluation pass; passes repeat until nothing changes or the pass
// limit is reached.
package runtime
