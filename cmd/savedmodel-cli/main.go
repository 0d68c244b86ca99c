// savedmodel-cli inspects TensorFlow SavedModel directories: which
// MetaGraphs they contain, which signatures those declare, and what the
// native runtime in use reports as its version.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	root := &cobra.Command{
		Use:           "savedmodel-cli",
		Short:         "Inspect TensorFlow SavedModel packages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is a convenience for LIBTENSORFLOW_* settings; its
			// absence is not an error.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				logger.Warn().Err(err).Msg("failed to load .env file")
			}
		},
	}

	root.AddCommand(newShowCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
