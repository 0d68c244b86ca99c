package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tensorbind/pure-tf/tf"
)

func newVersionCommand() *cobra.Command {
	var download bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the native TensorFlow runtime version",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := tf.InitializeEnvironmentWithBootstrap(
				tf.WithBootstrapDisableDownload(!download),
			)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "libtensorflow: unavailable (%v)\n", err)
				fmt.Fprintln(cmd.OutOrStdout(), "hint: set LIBTENSORFLOW_PATH or re-run with --download")
				return nil
			}
			defer func() {
				_ = tf.DestroyEnvironment()
			}()

			fmt.Fprintf(cmd.OutOrStdout(), "libtensorflow: %s\n", tf.Version())
			return nil
		},
	}

	cmd.Flags().BoolVar(&download, "download", false, "download libtensorflow into the cache when it is not already available")
	return cmd
}
