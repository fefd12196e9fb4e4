// Package validate checks inbound JSON payloads against embedded schemas.
package validate

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// ErrInvalidPayload is returned when a document does not match its schema
var ErrInvalidPayload = errors.New("invalid payload")

// Validator validates one kind of document
type Validator struct {
	name   string
	schema *gojsonschema.Schema
}

// NewRegistrationValidator validates worker registration bodies
func NewRegistrationValidator() (*Validator, error) {
	return load("register")
}

// NewCommandValidator validates forwarded command bodies
func NewCommandValidator() (*Validator, error) {
	return load("command")
}

func load(name string) (*Validator, error) {
	data, err := schemaFiles.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", name, err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", name, err)
	}

	return &Validator{name: name, schema: schema}, nil
}

// Validate checks a raw JSON document
func (v *Validator) Validate(document []byte) error {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(problems, "; "))
	}
	return nil
}
