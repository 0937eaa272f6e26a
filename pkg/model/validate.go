package model

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var definitionValidate *validator.Validate

func init() {
	definitionValidate = validator.New()
	_ = definitionValidate.RegisterValidation("regexp", validateRegexp)
}

func validateRegexp(fl validator.FieldLevel) bool {
	_, err := regexp.Compile(fl.Field().String())
	return err == nil
}

// ErrInvalidDefinition is wrapped by every definition validation failure.
var ErrInvalidDefinition = errors.New("model: invalid definition")

// ValidationErrors maps a struct path to a readable message.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	keys := make([]string, 0, len(v))
	for key := range v {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+v[key])
	}
	return "model: invalid definition: " + strings.Join(parts, "; ")
}

// Is lets errors.Is match ErrInvalidDefinition.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrInvalidDefinition
}

// Validate checks tag constraints and the cross-field rules for the field's
// type.
func (f FieldDefinition) Validate() error {
	errs := ValidationErrors{}
	if err := definitionValidate.Struct(f); err != nil {
		collectValidatorErrors(errs, err)
	}
	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = "is required"
	}
	if f.Type == FieldTypeSelect && f.SelectSource == SelectSourceAPI && f.APIOptions == nil {
		errs["apiOptions"] = "is required when selectSource is api"
	}
	if v := f.Validation; v != nil {
		if v.Min != nil && v.Max != nil && *v.Min > *v.Max {
			errs["validation.minValue"] = "must not exceed maxValue"
		}
		if v.MinLength != nil && v.MaxLength != nil && *v.MinLength > *v.MaxLength {
			errs["validation.minLength"] = "must not exceed maxLength"
		}
		if v.MinFiles != nil && v.MaxFiles != nil && *v.MinFiles > *v.MaxFiles {
			errs["validation.minFiles"] = "must not exceed maxFiles"
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Validate checks a user-context entry.
func (e UserContextEntry) Validate() error {
	if err := definitionValidate.Struct(e); err != nil {
		errs := ValidationErrors{}
		collectValidatorErrors(errs, err)
		return errs
	}
	return nil
}

func collectValidatorErrors(dst ValidationErrors, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		dst["_"] = err.Error()
		return
	}
	for _, fe := range verrs {
		dst[jsonPath(fe.Namespace())] = describeTag(fe)
	}
}

// jsonPath drops the root struct name and lower-cases the first letter of each
// segment so keys line up with JSON field names.
func jsonPath(namespace string) string {
	segments := strings.Split(namespace, ".")
	if len(segments) > 1 {
		segments = segments[1:]
	}
	for i, segment := range segments {
		switch segment {
		case "URL":
			segments[i] = "url"
		case "APIOptions":
			segments[i] = "apiOptions"
		case "Min":
			segments[i] = "minValue"
		case "Max":
			segments[i] = "maxValue"
		default:
			if segment != "" {
				segments[i] = strings.ToLower(segment[:1]) + segment[1:]
			}
		}
	}
	return strings.Join(segments, ".")
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "regexp":
		return "is not a valid regular expression"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
