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
	"github.com/MaxTuecke/dlhub-sdk/pkg/config"
)

var loginConfig = config.NewLogin()

// loginCmd represents the dlhub command for login.
var loginCmd = &cobra.Command{
	Use:   "login [flags]",
	Short: "A command line tool for dlhub login",
	Example: `
# log in to the DLHub service:
dlhub login

# discard cached tokens and log in again:
dlhub login --force
`,
	Args:               cobra.NoArgs,
	DisableAutoGenTag:  true,
	SilenceUsage:       true,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loginConfig.Validate(); err != nil {
			return err
		}

		return runLogin(cmd.Context())
	},
}

// init initializes login command.
func init() {
	flags := loginCmd.Flags()
	flags.BoolVar(&loginConfig.Force, "force", false, "Discard cached tokens and run the flow again")

	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("bind login flags to viper: %w", err))
	}
}

// runLogin runs the login flow for dlhub.
func runLogin(ctx context.Context) error {
	store, err := auth.NewStore(rootConfig.TokenDir)
	if err != nil {
		return err
	}

	flow := auth.NewFlow(store, os.Stdin, os.Stdout)
	if err := flow.Login(ctx, loginConfig.Force); err != nil {
		return err
	}

	fmt.Println("Login Succeeded.")
	return nil
}
