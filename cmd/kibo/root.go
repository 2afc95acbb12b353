package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wcuny/kibo/config"
	"github.com/wcuny/kibo/internal/dcontext"
	"github.com/wcuny/kibo/snapshot"
)

var (
	workDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "kibo",
	Short: "kibo takes and restores fast, deterministic snapshots of build artifacts",
	Long: `kibo saves a workspace's tracked directories and files into a local,
content-addressed blob store under a named snapshot, and restores any of
those snapshots back to the workspace byte-for-byte.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logrus.InfoLevel
		if verbose {
			level = logrus.DebugLevel
		}
		logger := logrus.New()
		logger.SetLevel(level)
		logger.SetOutput(os.Stderr)
		dcontext.SetDefaultLogger(logrus.NewEntry(logger))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "workspace directory (searched upward for .kibo.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

// rootContext returns a context canceled on SIGINT/SIGTERM, carrying the
// default logger so every pipeline stage logs consistently.
func rootContext() (context.Context, context.CancelFunc) {
	ctx := dcontext.Background()
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// openWorkspace resolves the workspace rooted at workDir (or an ancestor
// of it) and loads its configuration.
func openWorkspace() (snapshot.Workspace, config.Config, error) {
	root, err := config.FindRoot(workDir)
	if err != nil {
		return snapshot.Workspace{}, config.Config{}, err
	}
	ws := snapshot.Open(root)
	cfg, err := config.Load(ws.ConfigPath())
	if err != nil {
		return snapshot.Workspace{}, config.Config{}, err
	}
	return ws, cfg, nil
}
