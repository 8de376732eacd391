package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/storage/db"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Metadata database commands",
}

func withDB(cmd *cobra.Command, fn func(c *db.Client) error) error {
	if err := loadConfig(); err != nil {
		return err
	}

	c, err := db.New(cmd.Context())
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}

func registerDBCommands() {
	rootCmd.AddCommand(dbCmd)

	dbCmd.AddCommand(&cobra.Command{
		Use:     "list",
		Short:   "list compiled database drivers",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, _ []string) {
			for _, t := range db.RegisteredTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
		},
	})

	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "create or update tables in the configured database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd, func(c *db.Client) error {
				if err := c.Migrate(cmd.Context()); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s/%s\n", configs.GetConfig().DB.DriverName(), configs.GetConfig().DB.Database)

				return nil
			})
		},
	})

	dbCmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "check connectivity and print pool stats",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(cmd, func(c *db.Client) error {
				start := time.Now()
				if err := c.HealthCheck(cmd.Context()); err != nil {
					return err
				}

				st, err := c.Stats()
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "driver\t%s\n", configs.GetConfig().DB.DriverName())
				fmt.Fprintf(w, "latency\t%s\n", time.Since(start).Round(time.Microsecond))
				fmt.Fprintf(w, "open\t%d/%d\n", st.OpenConnections, st.MaxOpenConnections)
				fmt.Fprintf(w, "in use\t%d\n", st.InUse)
				fmt.Fprintf(w, "idle\t%d\n", st.Idle)

				return w.Flush()
			})
		},
	})
}
