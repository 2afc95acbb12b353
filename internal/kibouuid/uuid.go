// Package kibouuid generates unique suffixes for temporary files created
// during atomic writes in the blob store and manifest codec.
package kibouuid

import "github.com/google/uuid"

// NewString returns a random UUID in canonical string form.
func NewString() string {
	return uuid.NewString()
}
