// Package config loads and merges .kibo.toml, the workspace-level
// declaration of which directories and files make up the tracked set.
//
// The shape mirrors distribution/distribution's configuration package —
// a single tagged struct decoded from a config file, then selectively
// overlaid with CLI-supplied overrides — adapted from YAML to TOML per
// this tool's on-disk format.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/wcuny/kibo"
)

// FileName is the name of the workspace config file.
const FileName = ".kibo.toml"

// DirName is the name of the workspace state directory.
const DirName = ".kibo"

// Database holds the advisory MySQL connection parameters used by save
// and load. The core treats these fields as opaque inputs to the
// mysqldump/mysql shell-outs; it never inspects the values.
type Database struct {
	Name     string `toml:"name,omitempty"`
	Host     string `toml:"host,omitempty"`
	Port     int    `toml:"port,omitempty"`
	User     string `toml:"user,omitempty"`
	Tables   []string `toml:"tables,omitempty"`
}

// Config is the decoded contents of .kibo.toml.
type Config struct {
	Directories      []string `toml:"directories"`
	Files            []string `toml:"files"`
	Ignore           []string `toml:"ignore"`
	CompressionLevel int      `toml:"compression_level"`
	Progress         *bool    `toml:"progress,omitempty"`
	Database         Database `toml:"database,omitempty"`
}

// Default returns the configuration written by `kibo init`.
func Default() Config {
	return Config{
		Directories:      []string{},
		Files:            []string{},
		Ignore:           []string{".git", ".kibo"},
		CompressionLevel: 3,
	}
}

// Validate enforces the accepted bounds on configuration fields.
func (c Config) Validate() error {
	if c.CompressionLevel < 0 || c.CompressionLevel > 10 {
		return kibo.New(kibo.KindConfigInvalid, fmt.Sprintf("compression_level must be 0-10, got %d", c.CompressionLevel))
	}
	return nil
}

// Load reads and decodes the config file at path.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		if os.IsNotExist(err) {
			return c, kibo.Wrap(kibo.KindWorkspaceMissing, path, err)
		}
		return c, kibo.Wrap(kibo.KindConfigInvalid, path, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Save writes c to path as TOML, overwriting any existing file.
func Save(path string, c Config) error {
	f, err := os.Create(path)
	if err != nil {
		return kibo.Wrap(kibo.KindIoError, path, err)
	}
	defer f.Close()
	enc := toml.NewEncoder(f)
	if err := enc.Encode(c); err != nil {
		return kibo.Wrap(kibo.KindConfigInvalid, path, err)
	}
	return nil
}

// Overrides captures the CLI flags that may overlay the on-disk config for
// a single `save` invocation.
type Overrides struct {
	Directories    []string
	AddDirectories []string
	Files          []string
	AddFiles       []string
	CompressionLevel *int
	Progress       *bool
}

// Apply returns a copy of c with o layered on top. Directories/Files fully
// replace the base list; AddDirectories/AddFiles append to it.
func (o Overrides) Apply(c Config) Config {
	out := c
	if o.Directories != nil {
		out.Directories = append([]string(nil), o.Directories...)
	}
	if len(o.AddDirectories) > 0 {
		out.Directories = append(append([]string(nil), out.Directories...), o.AddDirectories...)
	}
	if o.Files != nil {
		out.Files = append([]string(nil), o.Files...)
	}
	if len(o.AddFiles) > 0 {
		out.Files = append(append([]string(nil), out.Files...), o.AddFiles...)
	}
	if o.CompressionLevel != nil {
		out.CompressionLevel = *o.CompressionLevel
	}
	if o.Progress != nil {
		out.Progress = o.Progress
	}
	return out
}

// ParseCSV splits a comma-separated CLI flag value into a trimmed slice,
// returning nil for an empty string so Overrides.Apply can distinguish
// "not set" from "set to empty".
func ParseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FindRoot walks upward from dir looking for .kibo.toml, returning the
// directory that contains it. This is the workspace root.
func FindRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", kibo.Wrap(kibo.KindIoError, dir, err)
	}
	for {
		if _, err := os.Stat(filepath.Join(abs, FileName)); err == nil {
			return abs, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", kibo.New(kibo.KindWorkspaceMissing, "no "+FileName+" found in "+dir+" or any parent")
		}
		abs = parent
	}
}
