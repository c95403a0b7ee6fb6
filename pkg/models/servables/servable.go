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

// Package servables holds the metadata builders for individually invocable
// artifacts: plain functions and trained models. Each builder assembles the
// "servable" section of the canonical document on top of the shared
// document core from pkg/models.
package servables

import (
	"github.com/MaxTuecke/dlhub-sdk/pkg/models"
	"github.com/MaxTuecke/dlhub-sdk/pkg/onnx"
)

// TypeDescriptor describes the type of one method input or output. A
// descriptor is either a leaf (scalar or tensor, optionally shaped) or a
// tuple composed of element descriptors.
type TypeDescriptor struct {
	Type        string
	Description string

	// Shape uses onnx.DynamicDim for unconstrained dimensions; a nil shape
	// means the type carries none.
	Shape []int64

	// ElementTypes is set for tuple descriptors only. Its length must match
	// the declared arity of the method, which is checked when the
	// descriptor is built, not at schema-validation time.
	ElementTypes []TypeDescriptor
}

// Tensor builds a shaped ndarray descriptor.
func Tensor(description string, shape ...int64) TypeDescriptor {
	return TypeDescriptor{Type: "ndarray", Description: description, Shape: shape}
}

// Scalar builds an unshaped leaf descriptor, e.g. "number" or "string".
func Scalar(typ, description string) TypeDescriptor {
	return TypeDescriptor{Type: typ, Description: description}
}

// Tuple builds a composite descriptor from element descriptors.
func Tuple(description string, elements ...TypeDescriptor) TypeDescriptor {
	return TypeDescriptor{Type: "tuple", Description: description, ElementTypes: elements}
}

// document renders the descriptor into canonical form, mapping dynamic
// dimensions to JSON null.
func (t TypeDescriptor) document() models.Document {
	doc := models.Document{
		"type":        t.Type,
		"description": t.Description,
	}

	if t.Shape != nil {
		shape := make([]any, 0, len(t.Shape))
		for _, d := range t.Shape {
			if d == onnx.DynamicDim {
				shape = append(shape, nil)
				continue
			}
			shape = append(shape, d)
		}
		doc["shape"] = shape
	}

	if len(t.ElementTypes) > 0 {
		elements := make([]any, 0, len(t.ElementTypes))
		for _, e := range t.ElementTypes {
			elements = append(elements, e.document())
		}
		doc["element_types"] = elements
	}

	return doc
}

// method is one entry of the servable.methods table.
type method struct {
	input      TypeDescriptor
	output     TypeDescriptor
	parameters map[string]any
	details    models.Document
}

func (m method) document() models.Document {
	parameters := models.Document{}
	for k, v := range m.parameters {
		parameters[k] = v
	}

	details := models.Document{}
	for k, v := range m.details {
		details[k] = v
	}

	return models.Document{
		"input":          m.input.document(),
		"output":         m.output.document(),
		"parameters":     parameters,
		"method_details": details,
	}
}
