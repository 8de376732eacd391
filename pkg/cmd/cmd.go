// Package cmd contains the command line applications for the project.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/yeisme/cloudvault/pkg/configs"
)

var (
	// configPath 配置文件或所在目录.
	configPath string
	// debug 打开调试日志与 swagger.
	debug bool

	rootCmd = &cobra.Command{
		Use:           "cloudvault",
		Short:         "CloudVault file storage and sharing service",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "config file or directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode")

	registerServeCommands()
	registerConfigsCommands()
	registerDBCommands()
	registerKVCommands()
	registerMQCommands()
	registerBlobCommands()
	registerGCCommands()
}

// loadConfig 加载配置，--debug 覆盖日志级别与调试开关.
func loadConfig() error {
	if err := configs.InitConfig(configPath); err != nil {
		return err
	}

	applyFlags(configs.GetConfig())

	return nil
}

// applyFlags 命令行参数覆盖配置.
func applyFlags(c *configs.AppConfig) {
	if debug {
		c.Server.Debug = true
		c.Log.Level = "debug"
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
