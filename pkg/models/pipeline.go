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

package models

import "fmt"

// Pipeline composes an ordered sequence of already-identified servables.
// Every step references another servable by its identifier, optionally with
// per-step parameters. A step may itself be a pipeline.
type Pipeline struct {
	Metadata

	steps []step
}

type step struct {
	identifier  string
	description string
	parameters  map[string]any
}

// NewPipeline creates an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{Metadata: NewMetadata()}
}

// AddStep appends a step to the pipeline. ref is either the identifier of a
// published servable (a UUID string) or a Model whose identifier has been
// assigned. The identifier is resolved here, once, and the stored step never
// observes later changes to the referenced model.
func (p *Pipeline) AddStep(ref any, description string, parameters map[string]any) error {
	var identifier string
	switch r := ref.(type) {
	case string:
		identifier = r
	case Model:
		identifier = r.UUID()
	default:
		return fmt.Errorf("step reference must be an identifier string or a models.Model, got %T", ref)
	}

	if identifier == "" {
		return fmt.Errorf("step %d (%s) references a model with no identifier, call AssignUUID first",
			len(p.steps), description)
	}

	var params map[string]any
	if parameters != nil {
		params = make(map[string]any, len(parameters))
		for k, v := range parameters {
			params[k] = v
		}
	}

	p.steps = append(p.steps, step{
		identifier:  identifier,
		description: description,
		parameters:  params,
	})
	return nil
}

// Steps returns the resolved identifier of every step, in order.
func (p *Pipeline) Steps() []string {
	ids := make([]string, 0, len(p.steps))
	for _, s := range p.steps {
		ids = append(ids, s.identifier)
	}

	return ids
}

// ToDocument produces the canonical document with the pipeline.steps
// section appended and the resource type marked as an interactive
// composite resource.
func (p *Pipeline) ToDocument(simplifyPaths bool) Document {
	doc := p.Metadata.ToDocument(simplifyPaths)

	doc["datacite"].(Document)["resourceType"] = Document{
		"resourceTypeGeneral": "InteractiveResource",
	}

	steps := make([]any, 0, len(p.steps))
	for _, s := range p.steps {
		stepDoc := Document{
			"dlhub_id":    s.identifier,
			"description": s.description,
		}
		if s.parameters != nil {
			params := Document{}
			for k, v := range s.parameters {
				params[k] = v
			}
			stepDoc["parameters"] = params
		}
		steps = append(steps, stepDoc)
	}

	doc["pipeline"] = Document{"steps": steps}
	return doc
}
