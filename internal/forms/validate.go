// Package forms validates dynamic form answers against their field
// definitions. Validation is a pure function over the field variant;
// persistence stays in the repository layer.
package forms

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"rutero-field/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateAnswer checks one submitted payload against its field
// definition. Returns nil when the answer is acceptable.
func ValidateAnswer(f domain.FormField, p domain.AnswerPayload) *domain.FieldValidationError {
	if p.Empty() {
		if f.Required {
			return fieldErr(f, "is required")
		}
		return nil
	}

	switch f.Type {
	case domain.FieldFile, domain.FieldImage:
		if p.File == nil {
			return fieldErr(f, "requires a file")
		}
		if len(f.AllowedExtensions) > 0 && !allowedExtension(f.AllowedExtensions, p.File.Extension) {
			return fieldErr(f, fmt.Sprintf("file type %q is not allowed", p.File.Extension))
		}

	case domain.FieldLocation:
		if p.Location == nil {
			return fieldErr(f, "requires a coordinate pair")
		}
		if !p.Location.InBounds() {
			return fieldErr(f, "coordinate out of range")
		}

	case domain.FieldSignature:
		if p.Signature == nil || *p.Signature == "" {
			return fieldErr(f, "requires a signature")
		}

	case domain.FieldNumber:
		if p.Value == nil {
			return fieldErr(f, "requires a numeric value")
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(*p.Value), 64)
		if err != nil {
			return fieldErr(f, fmt.Sprintf("%q is not a number", *p.Value))
		}
		if f.MinValue != nil && n < *f.MinValue {
			return fieldErr(f, fmt.Sprintf("must be at least %g", *f.MinValue))
		}
		if f.MaxValue != nil && n > *f.MaxValue {
			return fieldErr(f, fmt.Sprintf("must be at most %g", *f.MaxValue))
		}

	case domain.FieldEmail:
		if p.Value == nil || !emailPattern.MatchString(*p.Value) {
			return fieldErr(f, "is not a valid email address")
		}

	case domain.FieldSelect, domain.FieldRadio:
		if p.Value == nil {
			return fieldErr(f, "requires a selected option")
		}
		if _, ok := f.Options[*p.Value]; !ok {
			return fieldErr(f, fmt.Sprintf("%q is not a valid option", *p.Value))
		}

	default:
		// text, textarea, date, checkbox and anything future: a
		// non-empty scalar is enough.
		if p.Value == nil || strings.TrimSpace(*p.Value) == "" {
			return fieldErr(f, "requires a value")
		}
	}

	return nil
}

// ValidateAll checks every answer against the resolved definitions and
// collects every failure instead of short-circuiting. An answer whose
// field id resolves to no definition is itself a failure.
func ValidateAll(fields map[string]domain.FormField, answers []domain.FieldAnswer) []domain.FieldValidationError {
	var failures []domain.FieldValidationError

	for _, a := range answers {
		f, ok := fields[a.FieldID]
		if !ok {
			failures = append(failures, domain.FieldValidationError{
				FieldID: a.FieldID,
				Label:   a.FieldID,
				Reason:  "unknown form field",
			})
			continue
		}
		if err := ValidateAnswer(f, a.Payload); err != nil {
			failures = append(failures, *err)
		}
	}

	return failures
}

func fieldErr(f domain.FormField, reason string) *domain.FieldValidationError {
	return &domain.FieldValidationError{FieldID: f.ID, Label: f.Label, Reason: reason}
}

func allowedExtension(allowed []string, ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if ext == strings.ToLower(strings.TrimPrefix(a, ".")) {
			return true
		}
	}
	return false
}
