package cmd

import "github.com/spf13/cobra"

const skipWireAnnotation = "pttsync/skip-wire"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	app := &app{}

	rootCmd := &cobra.Command{
		Use:           "pttsync",
		Short:         "Push-to-talk event stream and history cache client",
		Long:          "pttsync keeps authenticated server-push streams open for alarm and channel updates, and maintains an offline-first cache of request history reconciled against the backend.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipWireAnnotation] == "true" {
				return nil
			}
			return app.wire(cmd.ErrOrStderr())
		},
	}
	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "Config file (default ~/.config/pttsync/config.toml)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newListenCmd(app),
		newHistoryCmd(app),
		newSecretCmd(app),
		newConfigCmd(app),
	)

	return rootCmd
}
