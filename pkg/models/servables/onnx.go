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

package servables

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MaxTuecke/dlhub-sdk/pkg/models"
	"github.com/MaxTuecke/dlhub-sdk/pkg/onnx"
)

const (
	onnxType = "ONNX Model"
	onnxShim = "onnx.OnnxServable"
)

// Layer is the base capability every custom object registered on a model
// must provide. The execution shim reconstructs custom objects from their
// registered names, which only works for components that declare the
// operator they implement.
type Layer interface {
	OpType() string
}

// ONNXModel describes a trained model serialized in the ONNX format. The
// serialized graph is introspected read-only to derive the run method's
// input and output types and a topology summary; the model is never
// executed.
type ONNXModel struct {
	models.Metadata

	topology      *onnx.Topology
	outputLabels  [][]string
	archFormat    string
	customObjects map[string]string
	input         TypeDescriptor
	output        TypeDescriptor
}

// Option configures CreateModel.
type Option func(*createOptions)

type createOptions struct {
	archPath     string
	introspector onnx.Introspector
}

// WithArchitecture supplies the graph in a separate architecture file, with
// modelPath then holding only the weights. The architecture format is
// detected from the file extension so the execution shim knows which
// decoder to use.
func WithArchitecture(path string) Option {
	return func(o *createOptions) { o.archPath = path }
}

// WithIntrospector overrides the topology extraction backend. Tests use it
// to decouple document assembly from file decoding.
func WithIntrospector(i onnx.Introspector) Option {
	return func(o *createOptions) { o.introspector = i }
}

// CreateModel builds the metadata for a trained model stored at modelPath.
// outputLabels holds one label group per output tensor and may be empty for
// unlabeled outputs; a count mismatch fails with models.ArityError.
func CreateModel(modelPath string, outputLabels [][]string, opts ...Option) (*ONNXModel, error) {
	options := createOptions{introspector: onnx.FileIntrospector{}}
	for _, opt := range opts {
		opt(&options)
	}

	graphPath := modelPath
	if options.archPath != "" {
		graphPath = options.archPath
	}

	topo, err := options.introspector.Introspect(graphPath)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect model %s: %w", graphPath, err)
	}

	if len(outputLabels) > 0 && len(outputLabels) != len(topo.Outputs) {
		return nil, &models.ArityError{Outputs: len(topo.Outputs), Labels: len(outputLabels)}
	}

	m := &ONNXModel{
		Metadata:      models.NewMetadata(),
		topology:      topo,
		outputLabels:  outputLabels,
		customObjects: make(map[string]string),
		input:         tensorsDescriptor(topo.Inputs),
		output:        tensorsDescriptor(topo.Outputs),
	}

	if options.archPath != "" {
		if err := m.AddFile("arch", options.archPath); err != nil {
			return nil, err
		}
		m.archFormat = archFormat(options.archPath)
	}
	if err := m.AddFile("model", modelPath); err != nil {
		return nil, err
	}

	m.AddRequirement("onnx", fmt.Sprintf("opset-%d", topo.OpsetVersion))
	if topo.ProducerName != "" {
		m.AddRequirement(topo.ProducerName, topo.ProducerVersion)
	}

	return m, nil
}

// AddCustomObject registers a user-defined component the execution shim
// must reconstruct by name when loading the model. The object must be a
// subclass of the Layer capability; anything else fails with
// models.SpecializationError.
func (m *ONNXModel) AddCustomObject(name string, object any) error {
	layer, ok := object.(Layer)
	if !ok {
		return &models.SpecializationError{
			Tag:    name,
			Reason: fmt.Sprintf("%T is not a subclass of servables.Layer", object),
		}
	}

	m.customObjects[name] = strings.TrimPrefix(fmt.Sprintf("%T", layer), "*")
	return nil
}

// Topology returns the introspection result the model was built from.
func (m *ONNXModel) Topology() *onnx.Topology { return m.topology }

// ToDocument produces the canonical document with the servable section for
// a trained-model artifact.
func (m *ONNXModel) ToDocument(simplifyPaths bool) models.Document {
	doc := m.Metadata.ToDocument(simplifyPaths)

	classes := make([]any, 0, len(m.outputLabels))
	if len(m.outputLabels) == 1 {
		// A single output keeps a flat label list.
		for _, label := range m.outputLabels[0] {
			classes = append(classes, label)
		}
	} else {
		for _, group := range m.outputLabels {
			labels := make([]any, 0, len(group))
			for _, label := range group {
				labels = append(labels, label)
			}
			classes = append(classes, labels)
		}
	}

	run := method{
		input:  m.input,
		output: m.output,
		details: models.Document{
			"method_name": "run",
			"classes":     classes,
		},
	}

	servable := models.Document{
		"methods": models.Document{
			"run": run.document(),
		},
		"type":          onnxType,
		"shim":          onnxShim,
		"language":      servableLanguage,
		"model_type":    "Deep NN",
		"model_summary": m.topology.Summary(),
	}

	options := models.Document{}
	if m.archFormat != "" {
		options["arch_format"] = m.archFormat
	}
	if len(m.customObjects) > 0 {
		names := make([]string, 0, len(m.customObjects))
		for name := range m.customObjects {
			names = append(names, name)
		}
		sort.Strings(names)

		objects := models.Document{}
		for _, name := range names {
			objects[name] = m.customObjects[name]
		}
		options["custom_objects"] = objects
	}
	if len(options) > 0 {
		servable["options"] = options
	}

	doc["servable"] = servable
	return doc
}

// tensorsDescriptor maps a tensor list to a type descriptor: a single
// tensor stays a leaf, several become a tuple with one element per tensor.
func tensorsDescriptor(tensors []onnx.TensorSpec) TypeDescriptor {
	if len(tensors) == 1 {
		return Tensor("Tensor", tensors[0].Shape...)
	}

	elements := make([]TypeDescriptor, 0, len(tensors))
	for _, t := range tensors {
		elements = append(elements, Tensor("Tensor", t.Shape...))
	}

	return Tuple("Tuple of tensors", elements...)
}

// archFormat detects the serialization of an architecture file from its
// extension. The service needs it to pick a JSON or textual decoder.
func archFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".txt", ".pbtxt":
		return "text"
	default:
		return "protobuf"
	}
}
