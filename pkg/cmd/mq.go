package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/storage/mq"
	"github.com/yeisme/cloudvault/pkg/queue"
)

var mqCmd = &cobra.Command{
	Use:     "mq",
	Short:   "Event bus backends and topics",
	Aliases: []string{"events"},
}

func registerMQCommands() {
	rootCmd.AddCommand(mqCmd)

	mqCmd.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "list compiled mq backends",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, _ []string) {
			for _, t := range mq.GetRegisteredMQTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	})

	mqCmd.AddCommand(&cobra.Command{
		Use:   "topics",
		Short: "list event topics and whether the current config publishes them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			ev := configs.GetConfig().Events

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TOPIC\tPUBLISHED")

			for _, t := range queue.AllTopics {
				fmt.Fprintf(w, "%s\t%t\n", t, queue.Enabled(&ev, t))
			}

			return w.Flush()
		},
	})
}
