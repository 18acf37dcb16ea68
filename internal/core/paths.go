// Package core holds small process-wide filesystem conventions shared by
// cmd/acpd and the packages it wires together.
package core

import (
	"os"
	"path/filepath"
)

// Paths is the broker's on-disk layout: a config/data directory under the
// user's home, a default log file within it, and the default permission
// rules file read by internal/permission.
type Paths struct {
	HomeDir   string
	DataDir   string
	LogFile   string
	RulesFile string
}

var defaultPaths *Paths

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}

		dataDir := filepath.Join(homeDir, ".config", "acpd")
		defaultPaths = &Paths{
			HomeDir:   homeDir,
			DataDir:   dataDir,
			LogFile:   filepath.Join(dataDir, "acpd.log"),
			RulesFile: filepath.Join(dataDir, "permissions.yaml"),
		}

		err = os.MkdirAll(defaultPaths.DataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func HomeDir() string {
	ensureDefaultPaths()
	return defaultPaths.HomeDir
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

func RulesFile() string {
	ensureDefaultPaths()
	return defaultPaths.RulesFile
}

// ResetPaths clears the cached paths, forcing them to be reinitialized.
// Used in tests that need a fresh HomeDir/DataDir resolution.
func ResetPaths() {
	defaultPaths = nil
}
