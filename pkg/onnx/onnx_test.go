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

package onnx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Wire-format helpers for building test fixtures without a protobuf
// dependency.

func varintBytes(v int64) []byte {
	var out []byte
	u := uint64(v)
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if u == 0 {
			return out
		}
	}
}

func varintField(field int, v int64) []byte {
	out := []byte{byte(field<<3 | wireVarint)}
	return append(out, varintBytes(v)...)
}

func bytesField(field int, data []byte) []byte {
	out := []byte{byte(field<<3 | wireBytes)}
	out = append(out, varintBytes(int64(len(data)))...)
	return append(out, data...)
}

func stringField(field int, s string) []byte {
	return bytesField(field, []byte(s))
}

func dimValue(v int64) []byte {
	return varintField(1, v)
}

func dimParam(name string) []byte {
	return stringField(2, name)
}

func valueInfo(name string, elemType int64, dims ...[]byte) []byte {
	var shape []byte
	for _, d := range dims {
		shape = append(shape, bytesField(1, d)...)
	}

	tensorType := varintField(1, elemType)
	tensorType = append(tensorType, bytesField(2, shape)...)

	out := stringField(1, name)
	return append(out, bytesField(2, bytesField(1, tensorType))...)
}

func initializer(name string, dims ...int64) []byte {
	var out []byte
	for _, d := range dims {
		out = append(out, varintField(1, d)...)
	}
	return append(out, stringField(8, name)...)
}

func node(name, opType string, inputs, outputs []string) []byte {
	var out []byte
	for _, in := range inputs {
		out = append(out, stringField(1, in)...)
	}
	for _, o := range outputs {
		out = append(out, stringField(2, o)...)
	}
	out = append(out, stringField(3, name)...)
	return append(out, stringField(4, opType)...)
}

// buildModel assembles a two-layer classifier: a dynamic batch of 784
// features through a Gemm with 7850 weights, then a Softmax.
func buildModel() []byte {
	var graph []byte
	graph = append(graph, bytesField(1, node("dense", "Gemm", []string{"input", "w", "b"}, []string{"dense_out"}))...)
	graph = append(graph, bytesField(1, node("probs", "Softmax", []string{"dense_out"}, []string{"output"}))...)
	graph = append(graph, bytesField(5, initializer("w", 784, 10))...)
	graph = append(graph, bytesField(5, initializer("b", 10))...)
	graph = append(graph, bytesField(11, valueInfo("input", 1, dimParam("batch"), dimValue(784)))...)
	graph = append(graph, bytesField(11, valueInfo("w", 1, dimValue(784), dimValue(10)))...)
	graph = append(graph, bytesField(11, valueInfo("b", 1, dimValue(10)))...)
	graph = append(graph, bytesField(12, valueInfo("output", 1, dimParam("batch"), dimValue(10)))...)

	var model []byte
	model = append(model, stringField(2, "pytorch")...)
	model = append(model, stringField(3, "2.1.0")...)
	model = append(model, bytesField(7, graph)...)
	model = append(model, bytesField(8, varintField(2, 13))...)

	return model
}

func TestInspect(t *testing.T) {
	topo, err := Inspect(buildModel())
	assert.NoError(t, err)

	assert.Equal(t, "pytorch", topo.ProducerName)
	assert.Equal(t, "2.1.0", topo.ProducerVersion)
	assert.Equal(t, int64(13), topo.OpsetVersion)

	// Initializer-backed names are weights, not user inputs.
	assert.Len(t, topo.Inputs, 1)
	assert.Equal(t, "input", topo.Inputs[0].Name)
	assert.Equal(t, "float32", topo.Inputs[0].DType)
	assert.Equal(t, []int64{DynamicDim, 784}, topo.Inputs[0].Shape)

	assert.Len(t, topo.Outputs, 1)
	assert.Equal(t, []int64{DynamicDim, 10}, topo.Outputs[0].Shape)

	assert.Len(t, topo.Layers, 2)
	assert.Equal(t, "Gemm", topo.Layers[0].OpType)
	assert.Equal(t, int64(7850), topo.Layers[0].Params)
	assert.Equal(t, int64(0), topo.Layers[1].Params)
	assert.Equal(t, int64(7850), topo.TotalParams)
}

func TestInspectNoGraph(t *testing.T) {
	_, err := Inspect(stringField(2, "pytorch"))
	assert.Error(t, err)
}

func TestInspectMalformed(t *testing.T) {
	_, err := Inspect([]byte{0x3a, 0xff})
	assert.Error(t, err)
}

func TestInspectOversizedLength(t *testing.T) {
	// Graph field declaring a payload of 2^63-1 bytes.
	data := []byte{0x3a, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}

	_, err := Inspect(data)
	assert.Error(t, err)
}

func TestInspectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.onnx")
	assert.NoError(t, os.WriteFile(path, buildModel(), 0644))

	topo, err := InspectFile(path)
	assert.NoError(t, err)
	assert.Equal(t, int64(7850), topo.TotalParams)

	_, err = InspectFile(filepath.Join(t.TempDir(), "missing.onnx"))
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	topo, err := Inspect(buildModel())
	assert.NoError(t, err)

	summary := topo.Summary()
	assert.True(t, strings.Contains(summary, "Layer (type)"))
	assert.True(t, strings.Contains(summary, "dense (Gemm)"))
	assert.True(t, strings.Contains(summary, "probs (Softmax)"))
	assert.True(t, strings.Contains(summary, "Total params: 7850"))
}

func TestFormatShape(t *testing.T) {
	assert.Equal(t, "(None, 784)", FormatShape([]int64{DynamicDim, 784}))
	assert.Equal(t, "()", FormatShape(nil))
}
