// Package repository owns the saved forms and the per-form rule sets.
//
// Forms keeps the forms list in the durable scope and the current form id in
// the session scope. Rules holds the rule set of one form at a time; loading
// another form swaps the whole set. Both persist through store.KV as JSON.
package repository
