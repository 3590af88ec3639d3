package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v2"
)

// LoadFile loads a config file (HCL, JSON or YAML), applies defaults and
// validates it. The environment is not consulted; see ApplyEnv.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		cfg, err = LoadHCL(data, path)
	case ".json":
		cfg, err = LoadJSON(data)
	case ".yml", ".yaml":
		cfg, err = LoadYAML(data)
	default:
		// Try HCL first, fall back to JSON
		cfg, err = LoadHCL(data, path)
		if err != nil {
			cfg, err = LoadJSON(data)
		}
	}
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); errs.HasErrors() {
		return nil, fmt.Errorf("invalid config %s: %w", path, errs)
	}
	return cfg, nil
}

// LoadHCL loads config from HCL bytes
func LoadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL parse error: %s", diags.Error())
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("HCL decode error: %s", diags.Error())
	}
	return finish(&cfg)
}

// LoadJSON loads config from JSON bytes
func LoadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return finish(&cfg)
}

// gatewayFile is the gateway's own config.yml: a bare service list.
type gatewayFile struct {
	Services []ServiceConfig `yaml:"services"`
}

// LoadYAML loads config from YAML bytes. A document with a top-level
// services list is read as the backend's service list.
func LoadYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}

	var gw gatewayFile
	if err := yaml.Unmarshal(data, &gw); err == nil && len(gw.Services) > 0 {
		if cfg.Backend == nil {
			cfg.Backend = &BackendConfig{}
		}
		if len(cfg.Backend.Services) == 0 {
			cfg.Backend.Services = gw.Services
		}
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if err := checkVersion(cfg.SchemaVersion); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GenerateHCL renders cfg as HCL. Secrets taken from the environment are
// never written.
func GenerateHCL(cfg *Config) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("schema_version", cty.StringVal(cfg.SchemaVersion))

	if c := cfg.Console; c != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("console", nil).Body()
		b.SetAttributeValue("backend_url", cty.StringVal(c.BackendURL))
		timeout := c.TimeoutRaw
		if timeout == "" {
			timeout = c.Timeout.String()
		}
		b.SetAttributeValue("timeout", cty.StringVal(timeout))
	}

	if w := cfg.Web; w != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("web", nil).Body()
		b.SetAttributeValue("listen", cty.StringVal(w.Listen))
		if w.SecureCookie {
			b.SetAttributeValue("secure_cookie", cty.True)
		}
		if len(w.TrustedProxies) > 0 {
			b.SetAttributeValue("trusted_proxies", stringList(w.TrustedProxies))
		}
	}

	if l := cfg.Logging; l != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("logging", nil).Body()
		b.SetAttributeValue("level", cty.StringVal(l.Level))
		b.SetAttributeValue("json", cty.BoolVal(l.JSON))
	}

	if be := cfg.Backend; be != nil {
		body.AppendNewline()
		b := body.AppendNewBlock("backend", nil).Body()
		b.SetAttributeValue("listen", cty.StringVal(be.Listen))
		b.SetAttributeValue("database", cty.StringVal(be.Database))
		if len(be.TrustedProxies) > 0 {
			b.SetAttributeValue("trusted_proxies", stringList(be.TrustedProxies))
		}
		for _, s := range be.Services {
			b.AppendNewline()
			sb := b.AppendNewBlock("service", []string{s.Name}).Body()
			if s.From != "" {
				sb.SetAttributeValue("from", cty.StringVal(s.From))
			}
			if s.To != "" {
				sb.SetAttributeValue("to", cty.StringVal(s.To))
			}
		}
	}

	return hclwrite.Format(f.Bytes())
}

func stringList(list []string) cty.Value {
	vals := make([]cty.Value, len(list))
	for i, v := range list {
		vals[i] = cty.StringVal(v)
	}
	return cty.ListVal(vals)
}
