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
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MaxTuecke/dlhub-sdk/pkg/client"
	"github.com/MaxTuecke/dlhub-sdk/pkg/config"
)

var statusConfig = config.NewStatus()

// statusCmd represents the dlhub command for task status.
var statusCmd = &cobra.Command{
	Use:                "status <task-id>",
	Short:              "A command line tool for checking publication task status",
	Args:               cobra.ExactArgs(1),
	DisableAutoGenTag:  true,
	SilenceUsage:       true,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		statusConfig.TaskID = args[0]
		if err := statusConfig.Validate(); err != nil {
			return err
		}

		return runStatus(cmd.Context())
	},
}

// init initializes status command.
func init() {
	flags := statusCmd.Flags()

	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("bind status flags to viper: %w", err))
	}
}

// runStatus polls the publication task.
func runStatus(ctx context.Context) error {
	c := client.New(client.WithServiceURL(rootConfig.ServiceURL))

	task, err := c.TaskStatus(ctx, statusConfig.TaskID)
	if err != nil {
		return err
	}

	fmt.Printf("%-12s%s\n", "Task:", task.TaskID)
	fmt.Printf("%-12s%s\n", "Status:", task.Status)
	return nil
}
