package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Validator applies draft-07 structural validation against loaded documents
type Validator struct {
	store *Store
}

// NewValidator creates a validator backed by the given store
func NewValidator(store *Store) *Validator {
	return &Validator{store: store}
}

// Validate checks a payload against a document and returns every violation.
// The returned slice is non-nil and empty on success. Validation has no side
// effects: identical inputs always produce identical error sets, and no
// diagnostic text is emitted anywhere but the return value.
func (v *Validator) Validate(payload interface{}, doc *Document) ([]ValidationError, error) {
	compiled, err := v.store.compile(doc)
	if err != nil {
		return nil, err
	}

	result, err := compiled.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to validate against %s: %w", doc.Path, err)
	}

	errs := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		errs = append(errs, ValidationError{
			Path:    re.Field(),
			Message: re.Description(),
		})
	}
	return errs, nil
}

// ValidateKey resolves a schema key through the store and validates against it
func (v *Validator) ValidateKey(payload interface{}, key string) ([]ValidationError, error) {
	doc, err := v.store.Lookup(key)
	if err != nil {
		return nil, err
	}
	return v.Validate(payload, doc)
}
