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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MaxTuecke/dlhub-sdk/pkg/models"
	"github.com/MaxTuecke/dlhub-sdk/pkg/onnx"
)

func TestFunctionDocument(t *testing.T) {
	f := NewFunction("numpy.linalg", "norm")
	f.SetTitle("Array norm").SetName("norm")
	f.SetInputs("ndarray", "Array to be normed", onnx.DynamicDim).
		SetOutputs("number", "Norm of the array").
		SetParameter("ord", 2).
		SetAutobatch(false)

	doc := f.ToDocument(false)
	servable := doc["servable"].(models.Document)

	assert.Equal(t, "Python static method", servable["type"])
	assert.Equal(t, "python.PythonStaticMethodServable", servable["shim"])
	assert.Equal(t, "python", servable["language"])

	run := servable["methods"].(models.Document)["run"].(models.Document)
	assert.Equal(t, models.Document{
		"module":    "numpy.linalg",
		"method":    "norm",
		"autobatch": false,
	}, run["method_details"])
	assert.Equal(t, models.Document{"ord": 2}, run["parameters"])

	input := run["input"].(models.Document)
	assert.Equal(t, "ndarray", input["type"])
	assert.Equal(t, "Array to be normed", input["description"])

	// A dynamic dimension serializes as JSON null.
	raw, err := json.Marshal(input["shape"])
	assert.NoError(t, err)
	assert.JSONEq(t, `[null]`, string(raw))

	output := run["output"].(models.Document)
	assert.Equal(t, "number", output["type"])
	_, hasShape := output["shape"]
	assert.False(t, hasShape)
}

func TestFunctionTupleOutput(t *testing.T) {
	f := NewFunction("scipy.linalg", "eig")
	f.SetInputs("ndarray", "Square matrix", onnx.DynamicDim, onnx.DynamicDim)
	f.SetOutputDescriptor(Tuple("Eigenvalues and eigenvectors",
		Tensor("Eigenvalues", onnx.DynamicDim),
		Tensor("Eigenvectors", onnx.DynamicDim, onnx.DynamicDim),
	))

	doc := f.ToDocument(false)
	run := doc["servable"].(models.Document)["methods"].(models.Document)["run"].(models.Document)

	output := run["output"].(models.Document)
	assert.Equal(t, "tuple", output["type"])

	elements := output["element_types"].([]any)
	assert.Len(t, elements, 2)
	assert.Equal(t, "ndarray", elements[0].(models.Document)["type"])
}

func TestScalarDescriptor(t *testing.T) {
	d := Scalar("string", "SMILES string")
	doc := d.document()
	assert.Equal(t, "string", doc["type"])
	_, hasShape := doc["shape"]
	assert.False(t, hasShape)
	_, hasElements := doc["element_types"]
	assert.False(t, hasElements)
}
