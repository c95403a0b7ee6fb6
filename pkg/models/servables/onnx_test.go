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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MaxTuecke/dlhub-sdk/pkg/models"
	"github.com/MaxTuecke/dlhub-sdk/pkg/onnx"
)

// stubIntrospector returns a fixed topology without touching the filesystem.
type stubIntrospector struct {
	topology *onnx.Topology
	err      error
}

func (s stubIntrospector) Introspect(path string) (*onnx.Topology, error) {
	return s.topology, s.err
}

func classifierTopology() *onnx.Topology {
	return &onnx.Topology{
		ProducerName:    "pytorch",
		ProducerVersion: "2.1.0",
		OpsetVersion:    13,
		Inputs: []onnx.TensorSpec{
			{Name: "input", DType: "float32", Shape: []int64{onnx.DynamicDim, 784}},
		},
		Outputs: []onnx.TensorSpec{
			{Name: "output", DType: "float32", Shape: []int64{onnx.DynamicDim, 10}},
		},
		Layers: []onnx.LayerInfo{
			{Name: "dense", OpType: "Gemm", Outputs: []string{"output"}, Params: 7850},
		},
		TotalParams: 7850,
	}
}

// convLayer satisfies the Layer capability for custom object tests.
type convLayer struct{}

func (convLayer) OpType() string { return "Conv" }

func TestCreateModel(t *testing.T) {
	labels := [][]string{{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}}
	m, err := CreateModel("/tmp/model.onnx", labels,
		WithIntrospector(stubIntrospector{topology: classifierTopology()}))
	assert.NoError(t, err)

	assert.Equal(t, map[string]string{"model": "/tmp/model.onnx"}, m.Files())

	doc := m.ToDocument(true)
	servable := doc["servable"].(models.Document)
	assert.Equal(t, "ONNX Model", servable["type"])
	assert.Equal(t, "onnx.OnnxServable", servable["shim"])
	assert.Equal(t, "Deep NN", servable["model_type"])
	assert.Contains(t, servable["model_summary"], "Total params: 7850")

	run := servable["methods"].(models.Document)["run"].(models.Document)
	details := run["method_details"].(models.Document)
	assert.Equal(t, "run", details["method_name"])

	// A single output group keeps a flat class list.
	classes := details["classes"].([]any)
	assert.Len(t, classes, 10)
	assert.Equal(t, "0", classes[0])

	// The opset and the producer both become requirements.
	deps := doc["dlhub"].(models.Document)["dependencies"].(models.Document)["python"].(models.Document)
	assert.Equal(t, "opset-13", deps["onnx"])
	assert.Equal(t, "2.1.0", deps["pytorch"])
}

func TestCreateModelLabelArity(t *testing.T) {
	labels := [][]string{{"cat"}, {"dog"}}
	_, err := CreateModel("/tmp/model.onnx", labels,
		WithIntrospector(stubIntrospector{topology: classifierTopology()}))

	arityErr := &models.ArityError{}
	assert.ErrorAs(t, err, &arityErr)
	assert.Equal(t, 1, arityErr.Outputs)
	assert.Equal(t, 2, arityErr.Labels)
}

func TestCreateModelNoLabels(t *testing.T) {
	m, err := CreateModel("/tmp/model.onnx", nil,
		WithIntrospector(stubIntrospector{topology: classifierTopology()}))
	assert.NoError(t, err)

	details := m.ToDocument(false)["servable"].(models.Document)["methods"].(models.Document)["run"].(models.Document)["method_details"].(models.Document)
	assert.Empty(t, details["classes"])
}

func TestCreateModelWithArchitecture(t *testing.T) {
	m, err := CreateModel("/tmp/weights.onnx", nil,
		WithArchitecture("/tmp/arch.json"),
		WithIntrospector(stubIntrospector{topology: classifierTopology()}))
	assert.NoError(t, err)

	assert.Equal(t, map[string]string{
		"arch":  "/tmp/arch.json",
		"model": "/tmp/weights.onnx",
	}, m.Files())

	options := m.ToDocument(false)["servable"].(models.Document)["options"].(models.Document)
	assert.Equal(t, "json", options["arch_format"])
}

func TestArchFormat(t *testing.T) {
	assert.Equal(t, "json", archFormat("/tmp/arch.JSON"))
	assert.Equal(t, "text", archFormat("/tmp/arch.pbtxt"))
	assert.Equal(t, "text", archFormat("/tmp/arch.txt"))
	assert.Equal(t, "protobuf", archFormat("/tmp/arch.onnx"))
}

func TestAddCustomObject(t *testing.T) {
	m, err := CreateModel("/tmp/model.onnx", nil,
		WithIntrospector(stubIntrospector{topology: classifierTopology()}))
	assert.NoError(t, err)

	assert.NoError(t, m.AddCustomObject("CustomConv", convLayer{}))

	err = m.AddCustomObject("NotALayer", struct{}{})
	specErr := &models.SpecializationError{}
	assert.ErrorAs(t, err, &specErr)
	assert.Contains(t, specErr.Reason, "is not a subclass of servables.Layer")

	options := m.ToDocument(false)["servable"].(models.Document)["options"].(models.Document)
	objects := options["custom_objects"].(models.Document)
	assert.Len(t, objects, 1)
	assert.Equal(t, "servables.convLayer", objects["CustomConv"])
}

func TestCreateModelIntrospectFailure(t *testing.T) {
	_, err := CreateModel("/tmp/model.onnx", nil,
		WithIntrospector(stubIntrospector{err: assert.AnError}))
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTensorsDescriptor(t *testing.T) {
	single := tensorsDescriptor([]onnx.TensorSpec{
		{Name: "input", Shape: []int64{onnx.DynamicDim, 784}},
	})
	assert.Equal(t, "ndarray", single.Type)
	assert.Equal(t, []int64{onnx.DynamicDim, 784}, single.Shape)

	multi := tensorsDescriptor([]onnx.TensorSpec{
		{Name: "a", Shape: []int64{1}},
		{Name: "b", Shape: []int64{2}},
	})
	assert.Equal(t, "tuple", multi.Type)
	assert.Len(t, multi.ElementTypes, 2)
}
