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

import "github.com/MaxTuecke/dlhub-sdk/pkg/models"

const (
	functionType = "Python static method"
	functionShim = "python.PythonStaticMethodServable"

	servableLanguage = "python"
)

// Function describes a plain invocable function: an importable module path
// plus a method name. A bare function carries no shape metadata, so input
// and output types are declared by the caller.
type Function struct {
	models.Metadata

	module     string
	methodName string
	autobatch  bool
	input      TypeDescriptor
	output     TypeDescriptor
	parameters map[string]any
}

// NewFunction creates a function servable for method of module.
func NewFunction(module, methodName string) *Function {
	return &Function{
		Metadata:   models.NewMetadata(),
		module:     module,
		methodName: methodName,
		parameters: make(map[string]any),
	}
}

// SetInputs declares the input type of the function as a leaf descriptor
// with an optional shape.
func (f *Function) SetInputs(typ, description string, shape ...int64) *Function {
	f.input = TypeDescriptor{Type: typ, Description: description}
	if len(shape) > 0 {
		f.input.Shape = shape
	}

	return f
}

// SetOutputs declares the output type of the function as a leaf descriptor
// with an optional shape.
func (f *Function) SetOutputs(typ, description string, shape ...int64) *Function {
	f.output = TypeDescriptor{Type: typ, Description: description}
	if len(shape) > 0 {
		f.output.Shape = shape
	}

	return f
}

// SetInputDescriptor declares the input type from a full descriptor, for
// tuple inputs.
func (f *Function) SetInputDescriptor(d TypeDescriptor) *Function {
	f.input = d
	return f
}

// SetOutputDescriptor declares the output type from a full descriptor, for
// tuple outputs.
func (f *Function) SetOutputDescriptor(d TypeDescriptor) *Function {
	f.output = d
	return f
}

// SetParameter records a default value for a free-form keyword parameter of
// the run method.
func (f *Function) SetParameter(name string, value any) *Function {
	f.parameters[name] = value
	return f
}

// SetAutobatch marks the function as operating on single items, letting the
// execution shim batch over list inputs.
func (f *Function) SetAutobatch(autobatch bool) *Function {
	f.autobatch = autobatch
	return f
}

// ToDocument produces the canonical document with the servable section for
// a static-method artifact.
func (f *Function) ToDocument(simplifyPaths bool) models.Document {
	doc := f.Metadata.ToDocument(simplifyPaths)

	run := method{
		input:      f.input,
		output:     f.output,
		parameters: f.parameters,
		details: models.Document{
			"module":    f.module,
			"method":    f.methodName,
			"autobatch": f.autobatch,
		},
	}

	doc["servable"] = models.Document{
		"methods": models.Document{
			"run": run.document(),
		},
		"type":     functionType,
		"shim":     functionShim,
		"language": servableLanguage,
	}

	return doc
}
