package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
)

var (
	objectsPrefix string
	objectsLimit  int

	blobCmd = &cobra.Command{
		Use:   "blob",
		Short: "File content storage related commands",
	}

	blobListCmd = &cobra.Command{
		Use:     "list",
		Short:   "list all registered blob backends",
		Aliases: []string{"ls", "l"},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Registered blob types:")

			for _, t := range blob.GetRegisteredBlobTypes() {
				fmt.Fprintln(cmd.OutOrStdout(), "   - "+string(t))
			}
		},
	}

	blobObjectsCmd = &cobra.Command{
		Use:   "objects",
		Short: "list objects in the configured bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(); err != nil {
				return err
			}

			ctx := cmd.Context()

			store, err := blob.New(ctx)
			if err != nil {
				return err
			}

			objs, err := store.List(ctx, objectsPrefix, objectsLimit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tCONTENT-TYPE")

			for _, o := range objs {
				fmt.Fprintf(w, "%s\t%d\t%s\n", o.Key, o.Size, o.ContentType)
			}

			return w.Flush()
		},
	}
)

func registerBlobCommands() {
	blobObjectsCmd.Flags().StringVarP(&objectsPrefix, "prefix", "p", "", "key prefix")
	blobObjectsCmd.Flags().IntVarP(&objectsLimit, "limit", "n", 100, "max objects to list")

	blobCmd.AddCommand(blobListCmd, blobObjectsCmd)
	rootCmd.AddCommand(blobCmd)
}
