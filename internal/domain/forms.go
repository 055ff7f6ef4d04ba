package domain

import "time"

// FieldType declared kind of a dynamic form field.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldTextarea  FieldType = "textarea"
	FieldNumber    FieldType = "number"
	FieldEmail     FieldType = "email"
	FieldSelect    FieldType = "select"
	FieldRadio     FieldType = "radio"
	FieldCheckbox  FieldType = "checkbox"
	FieldDate      FieldType = "date"
	FieldFile      FieldType = "file"
	FieldImage     FieldType = "image"
	FieldLocation  FieldType = "location"
	FieldSignature FieldType = "signature"
)

// RequiresFile reports whether the field kind stores a file reference.
func (t FieldType) RequiresFile() bool {
	return t == FieldFile || t == FieldImage
}

// FormField definition of one dynamic form field. Each kind carries
// only the attributes it needs; the rest stay zero.
type FormField struct {
	ID       string
	Label    string
	Type     FieldType
	Required bool

	// Number constraints.
	MinValue *float64
	MaxValue *float64

	// Select/radio option set, keyed by submitted value.
	Options map[string]string

	// Permitted file extensions (lowercase, without dot).
	AllowedExtensions []string
}

// FileRef reference to an uploaded file.
type FileRef struct {
	Path      string `json:"path"`
	Extension string `json:"extension"`
	SizeBytes int64  `json:"size_bytes"`
}

// AnswerPayload heterogeneous submitted value for one field. Exactly
// one member is expected to be set, matching the field's declared kind.
type AnswerPayload struct {
	Value     *string     `json:"value,omitempty"`
	File      *FileRef    `json:"file,omitempty"`
	Location  *Coordinate `json:"location,omitempty"`
	Signature *string     `json:"signature,omitempty"`
}

// Empty reports whether nothing usable was submitted.
func (p AnswerPayload) Empty() bool {
	return (p.Value == nil || *p.Value == "") &&
		p.File == nil && p.Location == nil &&
		(p.Signature == nil || *p.Signature == "")
}

// FieldAnswer one submitted answer, addressed by field definition.
type FieldAnswer struct {
	FieldID string
	Payload AnswerPayload
}

// FormResponse persisted answer row, keyed by (visit, field) —
// resubmission overwrites rather than duplicates. Only meaningful once
// the parent visit reaches completed.
type FormResponse struct {
	ID        string
	VisitID   string
	FieldID   string
	Payload   AnswerPayload
	CreatedAt time.Time
}
