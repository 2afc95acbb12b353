// Package dbdump wraps the mysqldump/mysql shell-outs that back
// `save --include-db` and `load --include-db`. The core never parses
// credentials or SQL; it only manages the sidecar file's lifecycle and
// surfaces the subprocess's stderr on failure.
//
// Each logical operation gets its own exported function and its own
// independent *exec.Cmd, with stderr captured into the returned error.
package dbdump

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/wcuny/kibo"
	"github.com/wcuny/kibo/config"
)

// Options carries the connection parameters used to shell out to
// mysqldump/mysql.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Tables   []string
}

// FromConfig builds Options from the workspace's advisory database block.
func FromConfig(db config.Database, password string) Options {
	return Options{
		Host:     db.Host,
		Port:     db.Port,
		User:     db.User,
		Password: password,
		Tables:   db.Tables,
	}
}

// SidecarName returns the basename a dump for snapshot/database pair
// would be written under.
func SidecarName(snapshot, database string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d.sql", snapshot, database, at.Unix())
}

func lookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return kibo.Wrap(kibo.KindDbToolMissing, name, err)
	}
	return nil
}

// Dump shells out to mysqldump, writing output to dbSnapshotsDir/name.
// A non-zero mysqldump exit deletes the partial sidecar before returning
// the wrapped error rather than leaving a truncated dump file behind.
func Dump(ctx context.Context, dbSnapshotsDir, name, database string, opts Options) (string, error) {
	if err := lookPath("mysqldump"); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dbSnapshotsDir, 0o777); err != nil {
		return "", kibo.Wrap(kibo.KindIoError, dbSnapshotsDir, err)
	}

	dest := filepath.Join(dbSnapshotsDir, name)
	args := []string{"--single-transaction"}
	if opts.Host != "" {
		args = append(args, "--host="+opts.Host)
	}
	if opts.Port != 0 {
		args = append(args, fmt.Sprintf("--port=%d", opts.Port))
	}
	if opts.User != "" {
		args = append(args, "--user="+opts.User)
	}
	args = append(args, database)
	args = append(args, opts.Tables...)

	cmd := exec.CommandContext(ctx, "mysqldump", args...)
	cmd.Env = dumpEnv(opts)

	out, err := os.Create(dest)
	if err != nil {
		return "", kibo.Wrap(kibo.KindIoError, dest, err)
	}
	cmd.Stdout = out

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	closeErr := out.Close()

	if runErr != nil {
		os.Remove(dest)
		return "", kibo.Wrap(kibo.KindDbCommandFailed, dest, fmt.Errorf("mysqldump: %v: %s", runErr, stderr.String()))
	}
	if closeErr != nil {
		os.Remove(dest)
		return "", kibo.Wrap(kibo.KindIoError, dest, closeErr)
	}

	return name, nil
}

// Restore shells out to mysql, piping in the dump file. Failure here does
// not undo any filesystem changes already made by the load pipeline; the
// caller is responsible for reporting a partial-failure exit code.
func Restore(ctx context.Context, dbSnapshotsDir, name, database string, opts Options) error {
	if err := lookPath("mysql"); err != nil {
		return err
	}

	src := filepath.Join(dbSnapshotsDir, name)
	in, err := os.Open(src)
	if err != nil {
		return kibo.Wrap(kibo.KindIoError, src, err)
	}
	defer in.Close()

	var args []string
	if opts.Host != "" {
		args = append(args, "--host="+opts.Host)
	}
	if opts.Port != 0 {
		args = append(args, fmt.Sprintf("--port=%d", opts.Port))
	}
	if opts.User != "" {
		args = append(args, "--user="+opts.User)
	}
	args = append(args, database)

	cmd := exec.CommandContext(ctx, "mysql", args...)
	cmd.Env = dumpEnv(opts)
	cmd.Stdin = in

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return kibo.Wrap(kibo.KindDbCommandFailed, src, fmt.Errorf("mysql: %v: %s", err, stderr.String()))
	}
	return nil
}

// dumpEnv passes credentials via the environment rather than argv, per
// credentials are passed via the environment, never a credentials file
// or argv, so they don't show up in `ps`.
func dumpEnv(opts Options) []string {
	env := os.Environ()
	if opts.Password != "" {
		env = append(env, "MYSQL_PWD="+opts.Password)
	}
	return env
}
