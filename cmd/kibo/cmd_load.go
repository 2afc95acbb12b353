package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/dbdump"
	"github.com/wcuny/kibo/history"
	"github.com/wcuny/kibo/snapshot"
)

var (
	loadIncludeDB bool
	loadJobs      int
)

var loadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "restore the workspace to exactly match a named snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		ws, cfg, err := openWorkspace()
		if err != nil {
			return err
		}

		opts := snapshot.LoadOptions{
			IncludeDB:      loadIncludeDB,
			MaxConcurrency: loadJobs,
		}
		if loadIncludeDB {
			opts.DbOptions = dbdump.FromConfig(cfg.Database, os.Getenv("MYSQL_PWD"))
		}

		ctx, cancel := rootContext()
		defer cancel()

		res, loadErr := snapshot.Load(ctx, ws, name, cfg, opts)
		if loadErr == nil && res.DbError != nil {
			loadErr = kibo.Wrap(kibo.KindDbCommandFailed, "", res.DbError)
		}

		entry := history.Entry{Op: "load", Snapshot: name, Success: loadErr == nil}
		if loadErr != nil {
			entry.Detail = loadErr.Error()
		}
		history.Append(ws.KiboDir(), entry)

		if res != nil {
			cmd.Printf("loaded %s: %d written, %d deleted, %d dirs created, %d dirs deleted\n",
				name, res.FilesWritten, res.FilesDeleted, res.DirsCreated, res.DirsDeleted)
			if loadIncludeDB {
				if res.DbError != nil {
					cmd.Printf("database restore failed: %v\n", res.DbError)
				} else if res.DbRestored {
					cmd.Println("database restored")
				}
			}
		}

		return loadErr
	},
}

func init() {
	loadCmd.Flags().BoolVar(&loadIncludeDB, "include-db", false, "also restore the snapshot's database dump, if any")
	loadCmd.Flags().IntVar(&loadJobs, "jobs", 0, "max parallel fetch workers (0 = NumCPU)")
}
