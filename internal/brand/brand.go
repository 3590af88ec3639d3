// Package brand holds the product identity: names, config locations and
// the environment prefix. The values come from brand.json so packaging
// scripts read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"
)

//go:embed brand.json
var brandJSON []byte

var (
	Name             string
	Description      string
	BinaryName       string
	ConfigEnvPrefix  string
	DefaultConfigDir string
	ConfigFileName   string

	// SessionCookie names the web console's browser session.
	SessionCookie string

	// Version is set at build time via -ldflags
	Version   = "dev"
	GitCommit = "unknown"
)

func init() {
	var b struct {
		Name             string `json:"name"`
		Description      string `json:"description"`
		BinaryName       string `json:"binaryName"`
		ConfigEnvPrefix  string `json:"configEnvPrefix"`
		DefaultConfigDir string `json:"defaultConfigDir"`
		ConfigFileName   string `json:"configFileName"`
		SessionCookie    string `json:"sessionCookie"`
	}
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name, Description, BinaryName = b.Name, b.Description, b.BinaryName
	ConfigEnvPrefix, DefaultConfigDir, ConfigFileName = b.ConfigEnvPrefix, b.DefaultConfigDir, b.ConfigFileName
	SessionCookie = b.SessionCookie
}

// UserAgent is sent with every backend request.
func UserAgent() string {
	return Name + "/" + Version
}

// Env returns the value of the brand-prefixed environment variable,
// e.g. Env("PASSWORD") reads RULEGATE_PASSWORD.
func Env(name string) string {
	return os.Getenv(ConfigEnvPrefix + "_" + name)
}

// ConfigDir returns RULEGATE_CONFIG_DIR if set, else DefaultConfigDir.
func ConfigDir() string {
	if dir := Env("CONFIG_DIR"); dir != "" {
		return dir
	}
	return DefaultConfigDir
}

// DefaultConfigPath returns the config file used when none is given.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}
