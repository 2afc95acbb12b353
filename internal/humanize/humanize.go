// Package humanize renders byte counts for CLI and log output.
package humanize

import "fmt"

// Bytes formats n using binary (1024-based) units, matching the
// presentation used in prune/save reports.
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
