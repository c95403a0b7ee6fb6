/*
 *     Copyright 2024 The DLHub Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package schemas validates canonical documents against the versioned
// structural schema contract before they leave the process. Schemas are
// embedded in the binary, composed with $ref, and loaded once into
// process-wide read-only state.
package schemas

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MaxTuecke/dlhub-sdk/pkg/models"
)

//go:embed schemas/v1/*.json
var schemaFS embed.FS

// schemaBase is the namespace the embedded schema documents are registered
// under. It is an identifier, never fetched.
const schemaBase = "https://dlhub.org/schemas/v1/"

// specializations maps the shim tag of a servable document to the schema
// that validates it. A shim outside this table is unknown to the service
// and must never fall through to a default schema.
var specializations = map[string]string{
	"python.PythonStaticMethodServable": "function.json",
	"onnx.OnnxServable":                 "onnx.json",
}

// ValidationError reports a structural schema violation with the offending
// field path and the constraint that was broken.
type ValidationError struct {
	Schema     string
	Field      string
	Constraint string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("document failed %s validation at %q: %s (constraint: %s)",
		e.Schema, e.Field, e.Message, e.Constraint)
}

var (
	registryOnce sync.Once
	registryErr  error
	registry     map[string]*jsonschema.Schema
	printer      = message.NewPrinter(language.English)
)

// loadRegistry compiles every embedded schema exactly once.
func loadRegistry() {
	compiler := jsonschema.NewCompiler()

	entries, err := fs.ReadDir(schemaFS, "schemas/v1")
	if err != nil {
		registryErr = fmt.Errorf("failed to list embedded schemas: %w", err)
		return
	}

	for _, entry := range entries {
		raw, err := schemaFS.ReadFile("schemas/v1/" + entry.Name())
		if err != nil {
			registryErr = fmt.Errorf("failed to read schema %s: %w", entry.Name(), err)
			return
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			registryErr = fmt.Errorf("failed to parse schema %s: %w", entry.Name(), err)
			return
		}

		if err := compiler.AddResource(schemaBase+entry.Name(), doc); err != nil {
			registryErr = fmt.Errorf("failed to register schema %s: %w", entry.Name(), err)
			return
		}
	}

	registry = make(map[string]*jsonschema.Schema)
	for _, entry := range entries {
		sch, err := compiler.Compile(schemaBase + entry.Name())
		if err != nil {
			registryErr = fmt.Errorf("failed to compile schema %s: %w", entry.Name(), err)
			return
		}
		registry[entry.Name()] = sch
	}
}

// Validate checks a canonical document against the named schema contract.
// The "servable" contract selects the schema by the document's declared
// specialization; the "datacite" contract checks a bare bibliographic
// section. Unknown shim tags fail with models.SpecializationError,
// structural violations with ValidationError.
func Validate(doc models.Document, name string) error {
	registryOnce.Do(loadRegistry)
	if registryErr != nil {
		return registryErr
	}

	var schemaName string
	switch name {
	case "servable":
		var err error
		schemaName, err = specializationSchema(doc)
		if err != nil {
			return err
		}
	case "datacite":
		schemaName = "datacite.json"
	default:
		return fmt.Errorf("unknown schema contract: %s", name)
	}

	sch, ok := registry[schemaName]
	if !ok {
		return fmt.Errorf("schema %s is not embedded", schemaName)
	}

	// Round-trip through JSON so validation sees exactly what the service
	// will receive, and so a non-serializable document fails loudly here.
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("document is not JSON-serializable: %w", err)
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}

	if err := sch.Validate(instance); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			leaf := leafCause(verr)
			return &ValidationError{
				Schema:     schemaName,
				Field:      "/" + strings.Join(leaf.InstanceLocation, "/"),
				Constraint: strings.Join(leaf.ErrorKind.KeywordPath(), "/"),
				Message:    leaf.ErrorKind.LocalizedString(printer),
			}
		}
		return err
	}

	return nil
}

// specializationSchema picks the schema for the document's declared kind.
func specializationSchema(doc models.Document) (string, error) {
	if _, ok := doc["pipeline"]; ok {
		return "pipeline.json", nil
	}

	servable, ok := doc["servable"].(models.Document)
	if !ok {
		return "", &models.SpecializationError{
			Tag:    "",
			Reason: "document has neither a servable nor a pipeline section",
		}
	}

	shim, _ := servable["shim"].(string)
	schemaName, ok := specializations[shim]
	if !ok {
		return "", &models.SpecializationError{
			Tag:    shim,
			Reason: "no schema registered for this specialization",
		}
	}

	return schemaName, nil
}

// leafCause walks the violation tree to the most specific failure.
func leafCause(err *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}

	return err
}
