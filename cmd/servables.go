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
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MaxTuecke/dlhub-sdk/pkg/client"
)

// servablesCmd represents the dlhub command for listing servables.
var servablesCmd = &cobra.Command{
	Use:                "servables",
	Short:              "A command line tool for listing published servables",
	Args:               cobra.NoArgs,
	DisableAutoGenTag:  true,
	SilenceUsage:       true,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServables(cmd.Context())
	},
}

// init initializes servables command.
func init() {
	flags := servablesCmd.Flags()

	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("bind servables flags to viper: %w", err))
	}
}

// runServables lists the servables registered with the service.
func runServables(ctx context.Context) error {
	c := client.New(client.WithServiceURL(rootConfig.ServiceURL))

	servables, err := c.Servables(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UUID\tNAME\tOWNER")
	for _, s := range servables {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.UUID, s.Name, s.Owner)
	}

	return tw.Flush()
}
