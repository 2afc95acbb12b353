package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wcuny/kibo/config"
	"github.com/wcuny/kibo/dbdump"
	"github.com/wcuny/kibo/history"
	"github.com/wcuny/kibo/internal/humanize"
	"github.com/wcuny/kibo/snapshot"
)

var (
	saveOverwrite   bool
	saveDatabase    string
	saveDbHost      string
	saveDbPort      int
	saveDbUser      string
	saveDirectories string
	saveAddDirs     string
	saveFiles       string
	saveAddFiles    string
	saveCompression int
	saveJobs        int
)

var saveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "hash and store the tracked set, writing a new named snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		ws, cfg, err := openWorkspace()
		if err != nil {
			return err
		}

		overrides := config.Overrides{
			Directories:    config.ParseCSV(saveDirectories),
			AddDirectories: config.ParseCSV(saveAddDirs),
			Files:          config.ParseCSV(saveFiles),
			AddFiles:       config.ParseCSV(saveAddFiles),
		}
		if cmd.Flags().Changed("compression-level") {
			overrides.CompressionLevel = &saveCompression
		}
		cfg = overrides.Apply(cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		opts := snapshot.SaveOptions{
			Overwrite:      saveOverwrite,
			MaxConcurrency: saveJobs,
		}
		if saveDatabase != "" {
			opts.Database = saveDatabase
			dbCfg := cfg.Database
			if saveDbHost != "" {
				dbCfg.Host = saveDbHost
			}
			if saveDbPort != 0 {
				dbCfg.Port = saveDbPort
			}
			if saveDbUser != "" {
				dbCfg.User = saveDbUser
			}
			opts.DbOptions = dbdump.FromConfig(dbCfg, os.Getenv("MYSQL_PWD"))
		}

		showProgress := cfg.Progress == nil || *cfg.Progress
		if showProgress {
			opts.Progress = func(done, total int) {
				fmt.Fprintf(os.Stderr, "\rsaving %s: %d/%d", name, done, total)
			}
		}

		ctx, cancel := rootContext()
		defer cancel()

		m, saveErr := snapshot.Save(ctx, ws, name, cfg, opts)
		if showProgress {
			fmt.Fprintln(os.Stderr)
		}

		entry := history.Entry{Op: "save", Snapshot: name, Success: saveErr == nil}
		if saveErr != nil {
			entry.Detail = saveErr.Error()
		}
		history.Append(ws.KiboDir(), entry)

		if saveErr != nil {
			return saveErr
		}

		cmd.Printf("saved %s: %d files, %d directories, %s total\n",
			name, len(m.Files), len(m.Directories), humanize.Bytes(m.TotalSize()))
		return nil
	},
}

func init() {
	saveCmd.Flags().BoolVar(&saveOverwrite, "overwrite", false, "replace an existing snapshot of the same name")
	saveCmd.Flags().StringVar(&saveDatabase, "database", "", "dump this MySQL database alongside the snapshot")
	saveCmd.Flags().StringVar(&saveDbHost, "db-host", "", "override the configured database host")
	saveCmd.Flags().IntVar(&saveDbPort, "db-port", 0, "override the configured database port")
	saveCmd.Flags().StringVar(&saveDbUser, "db-user", "", "override the configured database user")
	saveCmd.Flags().StringVar(&saveDirectories, "directories", "", "comma-separated directory list, replacing the configured one")
	saveCmd.Flags().StringVar(&saveAddDirs, "add-directory", "", "comma-separated directories to add to the configured list")
	saveCmd.Flags().StringVar(&saveFiles, "files", "", "comma-separated glob list, replacing the configured one")
	saveCmd.Flags().StringVar(&saveAddFiles, "add-file", "", "comma-separated globs to add to the configured list")
	saveCmd.Flags().IntVar(&saveCompression, "compression-level", 3, "zstd compression level, 0-10")
	saveCmd.Flags().IntVar(&saveJobs, "jobs", 0, "max parallel hashing workers (0 = NumCPU)")
}
