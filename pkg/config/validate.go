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

package config

import "fmt"

type Validate struct {
	DocumentPath string
	Family       string
}

func NewValidate() *Validate {
	return &Validate{
		DocumentPath: "",
		Family:       "servable",
	}
}

func (v *Validate) Validate() error {
	if len(v.DocumentPath) == 0 {
		return fmt.Errorf("missing document path")
	}

	if v.Family != "servable" && v.Family != "datacite" {
		return fmt.Errorf("invalid schema family: %q", v.Family)
	}

	return nil
}
