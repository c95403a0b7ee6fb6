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

import (
	"fmt"
	"strings"

	"github.com/MaxTuecke/dlhub-sdk/pkg/client"
)

type Publish struct {
	ModelPath        string
	ArchPath         string
	RequirementsPath string
	Name             string
	Title            string
	Creators         []string
	Abstract         string
	Domains          []string
	Labels           []string
	Bucket           string
	DryRun           bool
}

func NewPublish() *Publish {
	return &Publish{
		ModelPath: "",
		ArchPath:  "",
		Name:      "",
		Title:     "",
		Creators:  nil,
		Abstract:  "",
		Domains:   nil,
		Labels:    nil,
		Bucket:    client.DefaultBucket,
		DryRun:    false,
	}
}

func (p *Publish) Validate() error {
	if len(p.ModelPath) == 0 {
		return fmt.Errorf("missing model path")
	}

	if len(p.Name) == 0 {
		return fmt.Errorf("missing servable name")
	}

	if strings.ContainsAny(p.Name, " \t") {
		return fmt.Errorf("servable name must not contain whitespace: %q", p.Name)
	}

	if len(p.Title) == 0 {
		return fmt.Errorf("missing title")
	}

	if len(p.Creators) == 0 {
		return fmt.Errorf("missing creators")
	}

	return nil
}
