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

package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MaxTuecke/dlhub-sdk/pkg/config"
	"github.com/MaxTuecke/dlhub-sdk/pkg/models"
	"github.com/MaxTuecke/dlhub-sdk/pkg/schemas"
)

var validateConfig = config.NewValidate()

// validateCmd represents the dlhub command for validating a document.
var validateCmd = &cobra.Command{
	Use:   "validate [flags] <document.json>",
	Short: "A command line tool for validating servable documents",
	Example: `
# validate a servable document against the registered schemas:
dlhub validate servable.json
`,
	Args:               cobra.ExactArgs(1),
	DisableAutoGenTag:  true,
	SilenceUsage:       true,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		validateConfig.DocumentPath = args[0]
		if err := validateConfig.Validate(); err != nil {
			return err
		}

		return runValidate()
	},
}

// init initializes validate command.
func init() {
	flags := validateCmd.Flags()
	flags.StringVar(&validateConfig.Family, "family", validateConfig.Family, "Schema family to validate against")

	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("bind validate flags to viper: %w", err))
	}
}

// runValidate checks a document on disk against the registered schemas.
func runValidate() error {
	raw, err := os.ReadFile(validateConfig.DocumentPath)
	if err != nil {
		return err
	}

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", validateConfig.DocumentPath, err)
	}

	if err := schemas.Validate(doc, validateConfig.Family); err != nil {
		return err
	}

	fmt.Printf("%s is valid.\n", validateConfig.DocumentPath)
	return nil
}
