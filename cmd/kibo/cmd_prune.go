package main

import (
	"github.com/spf13/cobra"

	"github.com/wcuny/kibo/history"
	"github.com/wcuny/kibo/internal/humanize"
	"github.com/wcuny/kibo/snapshot"
)

var pruneDryRun bool

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "delete blobs and database dumps unreferenced by any remaining snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}

		ctx, cancel := rootContext()
		defer cancel()

		res, pruneErr := snapshot.Prune(ctx, ws, pruneDryRun)

		entry := history.Entry{Op: "prune", Success: pruneErr == nil}
		if pruneErr != nil {
			entry.Detail = pruneErr.Error()
		}
		history.Append(ws.KiboDir(), entry)

		if pruneErr != nil {
			return pruneErr
		}

		verb := "deleted"
		if pruneDryRun {
			verb = "would delete"
		}
		cmd.Printf("%s %d blobs (%s), %d database dumps\n",
			verb, res.BlobsDeleted, humanize.Bytes(res.BlobBytesReclaimed), res.DumpsDeleted)
		return nil
	},
}

func init() {
	pruneCmd.Flags().BoolVarP(&pruneDryRun, "dry-run", "n", false, "report what would be deleted without deleting it")
}
