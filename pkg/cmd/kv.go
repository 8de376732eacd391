package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
)

var kvCmd = &cobra.Command{
	Use:     "kv",
	Short:   "Inspect the configured key-value store",
	Aliases: []string{"keyvalue"},
}

// withKV 加载配置并打开 KV，fn 返回后关闭.
func withKV(cmd *cobra.Command, fn func(c *kv.Client) error) error {
	if err := loadConfig(); err != nil {
		return err
	}

	c, err := kv.NewKVClient(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}

func registerKVCommands() {
	rootCmd.AddCommand(kvCmd)

	kvCmd.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "list compiled kv backends, * marks the configured one",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, _ []string) {
			current := ""
			if loadConfig() == nil {
				current = configs.GetConfig().KV.Type
			}

			for _, t := range kv.GetRegisteredKVTypes() {
				mark := " "
				if string(t) == current {
					mark = "*"
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mark, t)
			}
		},
	})

	kvCmd.AddCommand(&cobra.Command{
		Use:   "keys [pattern]",
		Short: "list keys matching a glob pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, func(c *kv.Client) error {
				pattern := ""
				if len(args) == 1 {
					pattern = args[0]
				}

				keys, err := c.Keys(cmd.Context(), pattern)
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}

				return err
			})
		},
	})

	kvCmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "print a raw value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, func(c *kv.Client) error {
				v, err := c.Get(cmd.Context(), args[0])
				if errors.Is(err, kv.ErrKeyNotFound) {
					return fmt.Errorf("%s: not found", args[0])
				}

				if err == nil {
					_, err = cmd.OutOrStdout().Write(append(v, '\n'))
				}

				return err
			})
		},
	})

	kvCmd.AddCommand(&cobra.Command{
		Use:     "del <key>...",
		Short:   "delete keys",
		Aliases: []string{"rm"},
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withKV(cmd, func(c *kv.Client) error {
				for _, k := range args {
					if err := c.Delete(cmd.Context(), k); err != nil {
						return err
					}
				}

				return nil
			})
		},
	})

	kvCmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "write and read back a health check key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withKV(cmd, func(c *kv.Client) error {
				start := time.Now()
				if err := c.Healthy(cmd.Context()); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s ok (%s)\n", c.Type(), time.Since(start).Round(time.Microsecond))

				return nil
			})
		},
	})
}
