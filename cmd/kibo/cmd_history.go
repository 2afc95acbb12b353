package main

import (
	"github.com/spf13/cobra"

	"github.com/wcuny/kibo/history"
)

var (
	historySnapshot string
	historyLast     int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "show the audit log of save/load/rm/prune operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}

		entries, err := history.Read(ws.KiboDir(), history.Filter{Snapshot: historySnapshot, Last: historyLast})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			cmd.Println("no history")
			return nil
		}

		for _, e := range entries {
			status := "ok"
			if !e.Success {
				status = "failed"
			}
			line := e.Time.Format("2006-01-02 15:04:05") + "  " + e.Op
			if e.Snapshot != "" {
				line += " " + e.Snapshot
			}
			line += "  " + status
			if e.Detail != "" {
				line += ": " + e.Detail
			}
			cmd.Println(line)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historySnapshot, "snapshot", "", "only show entries for this snapshot")
	historyCmd.Flags().IntVar(&historyLast, "last", 0, "only show the last N entries")
}
