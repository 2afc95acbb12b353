package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/config"
	"github.com/wcuny/kibo/snapshot"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "scaffold .kibo.toml and .kibo/ in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(workDir, config.FileName)
		ws := snapshot.Open(workDir)

		for _, dir := range []string{ws.KiboDir(), ws.StoreDir(), ws.ManifestsDir(), ws.DbSnapshotsDir()} {
			if err := os.MkdirAll(dir, 0o777); err != nil {
				return kibo.Wrap(kibo.KindIoError, dir, err)
			}
		}

		if _, err := os.Stat(path); err == nil {
			cmd.Printf("%s already exists\n", path)
			return nil
		}
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		cmd.Printf("wrote %s\n", path)
		return nil
	},
}
