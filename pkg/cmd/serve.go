package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/cloudvault/pkg/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.NewApp(configPath, applyFlags)
		if err != nil {
			return err
		}

		return a.Run()
	},
}

func registerServeCommands() {
	rootCmd.AddCommand(serveCmd)
}
