package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yeisme/cloudvault/pkg/internal/jobs"
	"github.com/yeisme/cloudvault/pkg/internal/storage"
)

var gcCmd = &cobra.Command{
	Use:   "gc [job...]",
	Short: "run maintenance jobs once and exit",
	Long: "Run maintenance jobs once. Without arguments every job runs in order: " +
		strings.Join(jobs.Names, ", ") + ".",
	ValidArgs: jobs.Names,
	Args:      cobra.OnlyValidArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		ctx := cmd.Context()

		mgr, err := storage.Init(ctx)
		if err != nil {
			return err
		}
		defer mgr.Close()

		names := args
		if len(names) == 0 {
			names = jobs.Names
		}

		// 单个任务失败不影响后续任务
		var errList []error

		for _, name := range names {
			if err := jobs.RunOnce(ctx, mgr, name); err != nil {
				errList = append(errList, fmt.Errorf("%s: %w", name, err))
				continue
			}

			fmt.Fprintln(cmd.OutOrStdout(), name+": ok")
		}

		return errors.Join(errList...)
	},
}

func registerGCCommands() {
	rootCmd.AddCommand(gcCmd)
}
