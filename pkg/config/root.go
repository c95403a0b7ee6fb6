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

// Package config holds the per-command options of the dlhub CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MaxTuecke/dlhub-sdk/pkg/client"
)

type Root struct {
	ServiceURL      string
	TokenDir        string
	LogDir          string
	LogLevel        string
	DisableProgress bool
}

func NewRoot() (*Root, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	return &Root{
		ServiceURL:      client.DefaultServiceAddress,
		TokenDir:        filepath.Join(home, ".dlhub"),
		LogDir:          filepath.Join(home, ".dlhub", "logs"),
		LogLevel:        "info",
		DisableProgress: false,
	}, nil
}

func (r *Root) Validate() error {
	if len(r.ServiceURL) == 0 {
		return fmt.Errorf("missing service URL")
	}

	if len(r.TokenDir) == 0 {
		return fmt.Errorf("missing token directory")
	}

	return nil
}
