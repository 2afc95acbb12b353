// Command kibo is a content-addressed snapshot tool for build artifacts:
// it saves a workspace's tracked directories and files into a local
// blob store under a named snapshot, and later restores any of those
// snapshots back to the workspace byte-for-byte.
package main

import (
	"fmt"
	"os"

	"github.com/wcuny/kibo"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kibo:", err)
		os.Exit(kibo.KindOf(err).ExitCode())
	}
}
