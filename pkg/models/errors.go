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

// IdentityError is returned when AssignUUID is called on a model that
// already carries an identifier. An identifier names the version lineage of
// a servable, so reassigning it is never allowed.
type IdentityError struct {
	Identifier string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("model already has identifier %s, identifiers are immutable once assigned", e.Identifier)
}

// DuplicateReferenceError is returned when a file is registered under a
// logical name that is already bound to a different path.
type DuplicateReferenceError struct {
	Name     string
	Existing string
	Proposed string
}

func (e *DuplicateReferenceError) Error() string {
	return fmt.Sprintf("file reference %q already registered with path %s, refusing to overwrite with %s",
		e.Name, e.Existing, e.Proposed)
}

// ArityError is returned when the number of declared output label groups
// does not match the number of output tensors of a model.
type ArityError struct {
	Outputs int
	Labels  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("model has %d output tensor(s) but %d output label group(s) were declared", e.Outputs, e.Labels)
}

// SpecializationError is returned when a servable references a component the
// remote execution shim cannot handle: a custom object that is not a
// subclass of the expected base capability, or a document tagged with an
// unregistered specialization.
type SpecializationError struct {
	Tag    string
	Reason string
}

func (e *SpecializationError) Error() string {
	return fmt.Sprintf("specialization %q: %s", e.Tag, e.Reason)
}
