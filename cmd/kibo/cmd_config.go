package main

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "open .kibo.toml in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, _, err := openWorkspace()
		if err != nil {
			return err
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		ctx, cancel := rootContext()
		defer cancel()

		c := exec.CommandContext(ctx, editor, ws.ConfigPath())
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}
