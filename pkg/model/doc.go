// Package model defines the form-builder data model shared by the rule engine,
// the option resolver and the form runtime: field definitions with their
// validation constraints, remote option sources, user-context entries and the
// saved form document. Types serialise to plain JSON so they round-trip through
// any key-value persistence backend without live references.
//
// Field definitions are validated with go-playground/validator tags plus a few
// cross-field checks (select sources, case-insensitive name uniqueness is left
// to the fields registry). User-authored display strings are passed through
// SanitizeText before they are stored.
package model
