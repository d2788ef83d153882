// Package manifest handles wisp.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a wisp.toml configuration file.
type Manifest struct {
	Runtime Runtime `toml:"runtime"`
	Repl    Repl    `toml:"repl"`
	Image   Image   `toml:"image"`

	// Dir is the directory containing the wisp.toml file (set at load
	// time).
	Dir string `toml:"-"`
}

// Runtime tunes the scheduler and per-context resources.
type Runtime struct {
	// Quota is the number of evaluator steps a context gets per
	// scheduler visit.
	Quota int `toml:"quota"`

	// StackSize is the default continuation stack capacity.
	StackSize int `toml:"stack-size"`

	// MailboxSize caps each context's mailbox.
	MailboxSize int `toml:"mailbox-size"`
}

// Repl configures the interactive front end.
type Repl struct {
	History string `toml:"history"`
	Store   string `toml:"store"`
}

// Image configures environment snapshots.
type Image struct {
	Path string `toml:"path"`
}

// Default returns a Manifest with all defaults applied.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Runtime.Quota <= 0 {
		m.Runtime.Quota = 30
	}
	if m.Runtime.StackSize <= 0 {
		m.Runtime.StackSize = 256
	}
	if m.Runtime.MailboxSize <= 0 {
		m.Runtime.MailboxSize = 16
	}
	if m.Repl.History == "" {
		m.Repl.History = filepath.Join(configDir(), "history")
	}
	if m.Repl.Store == "" {
		m.Repl.Store = filepath.Join(configDir(), "programs.db")
	}
	if m.Image.Path == "" {
		m.Image.Path = filepath.Join(configDir(), "image.wisp")
	}
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".wisp")
}

// Load reads a wisp.toml file, applying defaults for missing keys.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("loading manifest %s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from dir looking for a wisp.toml. If none is
// found, defaults are returned.
func FindAndLoad(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}

	for {
		path := filepath.Join(abs, "wisp.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return Default(), nil
		}
		abs = parent
	}
}
