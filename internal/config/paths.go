package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".vconscribe"

// Paths holds resolved filesystem paths for vconscribe data.
type Paths struct {
	Base   string // ~/.vconscribe
	Config string // ~/.vconscribe/config.yaml
	Vcons  string // ~/.vconscribe/vcons
	Data   string // ~/.vconscribe/data
	Logs   string // ~/.vconscribe/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If VCONSCRIBE_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("VCONSCRIBE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Vcons:  filepath.Join(base, "vcons"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Vcons, p.Data, p.Logs}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
