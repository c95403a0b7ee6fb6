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

// Package onnx extracts the topology of a serialized ONNX model without
// executing it. Only the graph structure is decoded: declared inputs and
// outputs with their shapes, the node list, and the dimensions of the weight
// tensors for parameter counting. Weight data is never materialized.
package onnx

import (
	"fmt"
	"os"
	"strings"
)

// DynamicDim marks a dimension with no fixed size, typically the leading
// batch dimension.
const DynamicDim int64 = -1

// TensorSpec describes one named input or output tensor.
type TensorSpec struct {
	Name  string
	DType string
	Shape []int64
}

// LayerInfo summarizes one node of the computation graph.
type LayerInfo struct {
	Name    string
	OpType  string
	Outputs []string
	Params  int64
}

// Topology is the read-only introspection result for a model file.
type Topology struct {
	ProducerName    string
	ProducerVersion string
	OpsetVersion    int64
	Inputs          []TensorSpec
	Outputs         []TensorSpec
	Layers          []LayerInfo
	TotalParams     int64
}

// Introspector is the narrow seam between document assembly and model
// introspection. The production implementation decodes ONNX files; tests
// substitute their own.
type Introspector interface {
	Introspect(path string) (*Topology, error)
}

// FileIntrospector is the default Introspector, backed by InspectFile.
type FileIntrospector struct{}

// Introspect implements Introspector.
func (FileIntrospector) Introspect(path string) (*Topology, error) {
	return InspectFile(path)
}

// InspectFile reads the topology of an ONNX model from a file. A decode
// failure indicates a malformed or incompatible file and is never worth
// retrying.
func InspectFile(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	return Inspect(data)
}

// Inspect reads the topology of an ONNX model from raw bytes.
func Inspect(data []byte) (*Topology, error) {
	model, err := decodeModel(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}

	if model.graph == nil {
		return nil, fmt.Errorf("model has no graph")
	}

	topo := &Topology{
		ProducerName:    model.producerName,
		ProducerVersion: model.producerVersion,
		OpsetVersion:    model.opsetVersion,
	}

	// Initializers are weights, not user-supplied inputs. Exclude them from
	// the input list and use their dimensions for parameter counts.
	weights := make(map[string]int64, len(model.graph.initializers))
	for _, init := range model.graph.initializers {
		params := int64(1)
		for _, d := range init.dims {
			params *= d
		}
		weights[init.name] = params
		topo.TotalParams += params
	}

	for _, vi := range model.graph.inputs {
		if _, isWeight := weights[vi.Name]; isWeight {
			continue
		}
		topo.Inputs = append(topo.Inputs, vi)
	}
	topo.Outputs = append(topo.Outputs, model.graph.outputs...)

	for _, node := range model.graph.nodes {
		layer := LayerInfo{
			Name:    node.name,
			OpType:  node.opType,
			Outputs: node.outputs,
		}
		for _, in := range node.inputs {
			layer.Params += weights[in]
		}
		topo.Layers = append(topo.Layers, layer)
	}

	return topo, nil
}

// Summary renders a human-readable table of the topology, one row per
// layer. The result is diagnostic only and is never parsed back.
func (t *Topology) Summary() string {
	var b strings.Builder

	rule := strings.Repeat("_", 65)
	doubleRule := strings.Repeat("=", 65)

	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%-29s%-27s%s\n", "Layer (type)", "Output", "Param #")
	fmt.Fprintln(&b, doubleRule)
	for i, layer := range t.Layers {
		name := layer.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", i)
		}
		output := ""
		if len(layer.Outputs) > 0 {
			output = strings.Join(layer.Outputs, ", ")
		}
		fmt.Fprintf(&b, "%-29s%-27s%d\n", fmt.Sprintf("%s (%s)", name, layer.OpType), output, layer.Params)
		if i < len(t.Layers)-1 {
			fmt.Fprintln(&b, rule)
		}
	}
	fmt.Fprintln(&b, doubleRule)
	fmt.Fprintf(&b, "Total params: %d\n", t.TotalParams)
	fmt.Fprintln(&b, rule)

	return b.String()
}

// FormatShape renders a shape the way it appears in documents, with
// dynamic dimensions shown as None.
func FormatShape(shape []int64) string {
	parts := make([]string, 0, len(shape))
	for _, d := range shape {
		if d == DynamicDim {
			parts = append(parts, "None")
			continue
		}
		parts = append(parts, fmt.Sprintf("%d", d))
	}

	return "(" + strings.Join(parts, ", ") + ")"
}
