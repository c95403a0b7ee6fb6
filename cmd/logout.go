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
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MaxTuecke/dlhub-sdk/pkg/auth"
)

// logoutCmd represents the dlhub command for logout.
var logoutCmd = &cobra.Command{
	Use:                "logout",
	Short:              "A command line tool for dlhub logout",
	Args:               cobra.NoArgs,
	DisableAutoGenTag:  true,
	SilenceUsage:       true,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLogout(cmd.Context())
	},
}

// init initializes logout command.
func init() {
	flags := logoutCmd.Flags()

	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("bind logout flags to viper: %w", err))
	}
}

// runLogout runs the logout for dlhub.
func runLogout(ctx context.Context) error {
	store, err := auth.NewStore(rootConfig.TokenDir)
	if err != nil {
		return err
	}

	return auth.NewFlow(store, os.Stdin, os.Stdout).Logout(ctx)
}
