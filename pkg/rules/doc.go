// Package rules implements the rule model and the evaluation engine that
// turns a values snapshot into hidden fields, field errors and hidden select
// options.
//
// A rule is an AND-combined condition list plus exactly one action. Rules are
// applied in store order, so a later show-field can undo an earlier
// hide-field and a later comparison error replaces an earlier one for the
// same target. Option hides accumulate by union.
//
// Comparisons go through Normalize, which turns raw values into a
// NormalizedValue (number, lower-cased string or unresolvable) using the
// declared field type. Numeric-looking strings compare numerically whatever
// the field type; date fields compare by epoch milliseconds.
//
// Evaluate is pure: it never mutates its inputs and a failure inside one rule
// does not affect the others.
package rules
