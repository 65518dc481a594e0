// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/leseb/bedrock-gw/pkg/app"
	"github.com/leseb/bedrock-gw/pkg/core/config"
	"github.com/leseb/bedrock-gw/pkg/observability/logging"
)

const rootLongDesc string = `bedrockctl talks to Amazon Bedrock models and the configured vector store
directly, using the same configuration as the gateway server.

Configuration comes from an optional YAML file (--config) and the
environment; a .env file in the working directory is loaded first.

The default vector store is in-memory, so records stored by one invocation
are gone by the next. Set SQLITE_PATH, or DATABASE_URL with USE_PSQL=true,
to keep them.

Examples:
  bedrockctl generate "Write a haiku about Go" --stream
  bedrockctl image "a lighthouse at dawn" -o lighthouse.png
  bedrockctl ingest handbook.pdf --namespace docs
  bedrockctl ask "What is the vacation policy?" --namespace docs`

const rootShortDesc string = "Bedrock gateway command-line client"

// rootCommander holds the global flags and builds the components each
// subcommand needs.
type rootCommander struct {
	configPath string
	logLevel   string
	logFormat  string

	lookup     config.LookupFunc
	appOptions []app.Option
}

// NewRootCmd returns the bedrockctl command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootCommander{lookup: os.LookupEnv})
}

func newRootCmd(root *rootCommander) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "bedrockctl",
		Short:         rootShortDesc,
		Long:          rootLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&root.configPath, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&root.logLevel, "log-level", "", "Log level: debug, info, warn or error (default from config)")
	cmd.PersistentFlags().StringVar(&root.logFormat, "log-format", "", "Log format: json, text or pretty (default from config)")

	// Add subcommands
	cmd.AddCommand(
		newGenerateCmd(root),
		newImageCmd(root),
		newEmbedCmd(root),
		newStoreCmd(root),
		newSearchCmd(root),
		newAskCmd(root),
		newIngestCmd(root),
		newModelsCmd(),
	)

	return cmd
}

// open loads the configuration and wires the components. Logs go to
// stderr so command output stays pipeable. The caller must Close the App.
func (r *rootCommander) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(r.configPath, r.lookup)
	if err != nil {
		return nil, err
	}
	if r.logLevel != "" {
		cfg.Logging.Level = r.logLevel
	}
	if r.logFormat != "" {
		cfg.Logging.Format = r.logFormat
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cmd.ErrOrStderr(),
	})
	return app.New(cmd.Context(), cfg, logger.Logger, r.appOptions...)
}

// run opens the App, hands it to fn and closes it afterwards.
func (r *rootCommander) run(cmd *cobra.Command, fn func(*app.App) error) error {
	a, err := r.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close(cmd.Context())
	return fn(a)
}
