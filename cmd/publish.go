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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MaxTuecke/dlhub-sdk/pkg/auth"
	"github.com/MaxTuecke/dlhub-sdk/pkg/client"
	"github.com/MaxTuecke/dlhub-sdk/pkg/config"
	"github.com/MaxTuecke/dlhub-sdk/pkg/models/servables"
	"github.com/MaxTuecke/dlhub-sdk/pkg/onnx"
	"github.com/MaxTuecke/dlhub-sdk/pkg/requirements"
	"github.com/MaxTuecke/dlhub-sdk/pkg/schemas"
)

var publishConfig = config.NewPublish()

// publishCmd represents the dlhub command for publish.
var publishCmd = &cobra.Command{
	Use:   "publish [flags]",
	Short: "A command line tool for dlhub publish",
	Example: `
# publish an ONNX model:
dlhub publish --model model.onnx --name mnist_cnn --title "MNIST CNN" --creator "Doe, Jane"

# inspect the generated document without submitting it:
dlhub publish --model model.onnx --name mnist_cnn --title "MNIST CNN" --creator "Doe, Jane" --dry-run
`,
	Args:               cobra.NoArgs,
	DisableAutoGenTag:  true,
	SilenceUsage:       true,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := publishConfig.Validate(); err != nil {
			return err
		}

		return runPublish(cmd.Context())
	},
}

// init initializes publish command.
func init() {
	flags := publishCmd.Flags()
	flags.StringVarP(&publishConfig.ModelPath, "model", "m", "", "Path to the trained model file")
	flags.StringVar(&publishConfig.ArchPath, "arch", "", "Path to a separate architecture file")
	flags.StringVarP(&publishConfig.RequirementsPath, "requirements", "r", "", "Path to a pip requirements file")
	flags.StringVarP(&publishConfig.Name, "name", "n", "", "Short name for the servable")
	flags.StringVarP(&publishConfig.Title, "title", "t", "", "Title recorded in the citation metadata")
	flags.StringArrayVarP(&publishConfig.Creators, "creator", "c", nil, "Creator in 'Family, Given' form, repeatable")
	flags.StringVar(&publishConfig.Abstract, "abstract", "", "Abstract describing the servable")
	flags.StringArrayVar(&publishConfig.Domains, "domain", nil, "Science domain tag, repeatable")
	flags.StringArrayVar(&publishConfig.Labels, "label", nil, "Output class label, repeatable")
	flags.StringVar(&publishConfig.Bucket, "bucket", publishConfig.Bucket, "Staging bucket for the servable files")
	flags.BoolVar(&publishConfig.DryRun, "dry-run", false, "Print the validated document instead of publishing")

	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Errorf("bind publish flags to viper: %w", err))
	}
}

// runPublish builds the servable document and submits it.
func runPublish(ctx context.Context) error {
	var labels [][]string
	if len(publishConfig.Labels) > 0 {
		labels = [][]string{publishConfig.Labels}
	}

	var opts []servables.Option
	if publishConfig.ArchPath != "" {
		opts = append(opts, servables.WithArchitecture(publishConfig.ArchPath))
	}

	introspector, err := onnx.NewCachingIntrospector(onnx.FileIntrospector{}, filepath.Join(rootConfig.TokenDir, "cache"))
	if err != nil {
		return err
	}
	opts = append(opts, servables.WithIntrospector(introspector))

	model, err := servables.CreateModel(publishConfig.ModelPath, labels, opts...)
	if err != nil {
		return err
	}

	model.SetName(publishConfig.Name).SetTitle(publishConfig.Title)
	for _, creator := range publishConfig.Creators {
		model.AddCreator(creator)
	}
	if publishConfig.Abstract != "" {
		model.SetAbstract(publishConfig.Abstract)
	}
	if len(publishConfig.Domains) > 0 {
		model.AddDomains(publishConfig.Domains...)
	}
	if publishConfig.RequirementsPath != "" {
		reqs, err := requirements.ParseFile(publishConfig.RequirementsPath)
		if err != nil {
			return err
		}
		for library, version := range reqs {
			model.AddRequirement(library, version)
		}
	}

	if publishConfig.DryRun {
		doc := model.ToDocument(true)
		if err := schemas.Validate(doc, "servable"); err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(doc)
	}

	store, err := auth.NewStore(rootConfig.TokenDir)
	if err != nil {
		return err
	}
	if !store.IsLoggedIn() {
		return fmt.Errorf("not logged in, run 'dlhub login' first")
	}

	stager, err := client.NewS3Stager(ctx, client.WithBucket(publishConfig.Bucket))
	if err != nil {
		return err
	}

	c := client.New(
		client.WithServiceURL(rootConfig.ServiceURL),
		client.WithCredentials(store),
		client.WithStager(stager),
	)

	taskID, err := c.PublishServable(ctx, model)
	if err != nil {
		return err
	}

	fmt.Printf("Submitted %s for publication, task %s.\n", model.UUID(), taskID)
	fmt.Printf("Check progress with 'dlhub status %s'.\n", taskID)
	return nil
}
