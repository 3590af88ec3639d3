package brand

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadedFromJSON(t *testing.T) {
	assert.Equal(t, "Rulegate", Name)
	assert.Equal(t, "rulegate", BinaryName)
	assert.Equal(t, "RULEGATE", ConfigEnvPrefix)
	assert.NotEmpty(t, SessionCookie)
	assert.Equal(t, "Rulegate/dev", UserAgent())
}

func TestConfigDir(t *testing.T) {
	t.Setenv("RULEGATE_CONFIG_DIR", "")
	assert.Equal(t, DefaultConfigDir, ConfigDir())

	t.Setenv("RULEGATE_CONFIG_DIR", "/tmp/rg")
	assert.Equal(t, filepath.Join("/tmp/rg", ConfigFileName), DefaultConfigPath())
	assert.Equal(t, "/tmp/rg", Env("CONFIG_DIR"))
}
