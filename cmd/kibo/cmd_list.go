package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wcuny/kibo/internal/humanize"
	"github.com/wcuny/kibo/snapshot"
)

var listOrder string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list snapshots in this workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}

		var order snapshot.Order
		switch listOrder {
		case "name":
			order = snapshot.ByName
		case "created":
			order = snapshot.ByCreated
		case "size":
			order = snapshot.BySize
		case "files":
			order = snapshot.ByFileCount
		default:
			order = snapshot.ByName
		}

		infos, err := snapshot.List(ws, order)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			cmd.Println("no snapshots")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer tw.Flush()
		for _, info := range infos {
			db := "-"
			if info.Database != "" {
				db = info.Database
			}
			fmt.Fprintf(tw, "%s\t%s\t%d files\t%d dirs\t%s\tdb: %s\n",
				info.Name, info.CreatedAt.Format("2006-01-02 15:04:05"),
				info.NumFiles, info.NumDirs, humanize.Bytes(info.TotalSize), db)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listOrder, "sort", "created", "sort by name, created, size, or files")
}
