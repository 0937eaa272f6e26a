// Package openapi imports form field definitions from the request body of an
// OpenAPI 3 operation.
//
// Each top-level property of the operation's object schema becomes one field:
//
//	string              -> text (email format -> email, date/date-time -> date,
//	                       binary -> file, enum -> select)
//	number, integer     -> number
//	boolean             -> checkbox
//	array of enum       -> multi select
//	array of binary     -> file (minItems/maxItems -> minFiles/maxFiles)
//
// Object properties and unsupported shapes are skipped. The x-formrules
// extension on a property can set label, placeholder, and apiOptions.
package openapi
