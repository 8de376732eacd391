package cmd

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yeisme/cloudvault/pkg/configs"
)

var (
	// debugFormat config debug 的输出格式.
	debugFormat string

	configCmd = &cobra.Command{
		Use:               "config",
		Short:             "config subcommands",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return loadConfig() },
	}

	// 打印当前使用的配置文件路径.
	pathCmd = &cobra.Command{
		Use:   "path",
		Short: "print the path of the current config file",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := configs.GetViper().ConfigFileUsed()
			if cfg == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "no config file used (defaults and CLOUDVAULT_* env only)")
				return
			}

			fmt.Fprintln(cmd.OutOrStdout(), cfg)
		},
	}

	// 打印合并默认值与环境变量后的配置.
	debugCmd = &cobra.Command{
		Use:   "debug",
		Short: "print the effective config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				configs.GetViper().Debug()
			}

			c := configs.GetConfig()

			var (
				b   []byte
				err error
			)

			switch debugFormat {
			case "json":
				b, err = sonic.ConfigStd.MarshalIndent(c, "", "  ")
			case "yaml":
				// yaml 使用 viper 的键名，便于直接粘贴到配置文件
				b, err = yaml.Marshal(configs.GetViper().AllSettings())
			default:
				return fmt.Errorf("unsupported format %q, want json or yaml", debugFormat)
			}

			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(b))

			return nil
		},
	}

	validateCmd = &cobra.Command{
		Use:   "validate",
		Short: "validate the config against its rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := configs.Validate(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "config ok")

			return nil
		},
	}
)

// registerConfigsCommands 注册 CLI 子命令.
func registerConfigsCommands() {
	debugCmd.Flags().StringVarP(&debugFormat, "format", "f", "json", "output format: json or yaml")

	configCmd.AddCommand(pathCmd, debugCmd, validateCmd)

	rootCmd.AddCommand(configCmd)
}
