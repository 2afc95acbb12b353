package main

import (
	"github.com/spf13/cobra"

	"github.com/wcuny/kibo/history"
	"github.com/wcuny/kibo/snapshot"
)

var rmCmd = &cobra.Command{
	Use:   "rm <name>...",
	Short: "delete one or more snapshots' manifests and any dump sidecars they solely own",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}

		var firstErr error
		for _, name := range args {
			rmErr := snapshot.Remove(ws, name)

			entry := history.Entry{Op: "rm", Snapshot: name, Success: rmErr == nil}
			if rmErr != nil {
				entry.Detail = rmErr.Error()
			}
			history.Append(ws.KiboDir(), entry)

			if rmErr != nil {
				cmd.PrintErrf("rm %s: %v\n", name, rmErr)
				if firstErr == nil {
					firstErr = rmErr
				}
				continue
			}
			cmd.Printf("removed %s\n", name)
		}
		return firstErr
	},
}
