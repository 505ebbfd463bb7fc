// Package config loads the gateway configuration from a YAML document with
// ${VAR} environment expansion, applying defaults and failing fast on
// missing identity settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/viant/scy"
	"gopkg.in/yaml.v3"
)

type Azure struct {
	ClientID string `yaml:"clientId" json:"clientID"`
	TenantID string `yaml:"tenantId" json:"tenantID"`
}

type EmailGuardrails struct {
	AllowDomains           []string `yaml:"allowDomains" json:"allowDomains"`
	RequireDraftApproval   *bool    `yaml:"requireDraftApproval" json:"requireDraftApproval"`
	StripSensitiveFromLogs *bool    `yaml:"stripSensitiveFromLogs" json:"stripSensitiveFromLogs"`
}

type AuditConfig struct {
	Enabled       *bool  `yaml:"enabled" json:"enabled"`
	LogPath       string `yaml:"logPath" json:"logPath"`
	RetentionDays int    `yaml:"retentionDays" json:"retentionDays"`
}

type Guardrails struct {
	Email EmailGuardrails `yaml:"email" json:"email"`
	Audit AuditConfig     `yaml:"audit" json:"audit"`
}

type Safety struct {
	RequireConfirmForWrites *bool `yaml:"requireConfirmForWrites" json:"requireConfirmForWrites"`
}

type Output struct {
	DefaultIncludeFull bool `yaml:"defaultIncludeFull" json:"defaultIncludeFull"`
	DefaultMaxChars    int  `yaml:"defaultMaxChars" json:"defaultMaxChars"`
	HardMaxChars       int  `yaml:"hardMaxChars" json:"hardMaxChars"`
}

type Search struct {
	DefaultTop int `yaml:"defaultTop" json:"defaultTop"`
	MaxTop     int `yaml:"maxTop" json:"maxTop"`
}

type Calendar struct {
	DefaultTimezone string `yaml:"defaultTimezone" json:"defaultTimezone"`
}

type Storage struct {
	TokenPath string `yaml:"tokenPath" json:"tokenPath"`
}

type Retrieval struct {
	Enabled    *bool  `yaml:"enabled" json:"enabled"`
	DataSource string `yaml:"dataSource" json:"dataSource"`
}

// Config is the full gateway configuration. Pointer booleans distinguish
// "unset" from an explicit false so defaults can be applied.
type Config struct {
	Azure Azure `yaml:"azure" json:"azure"`
	// AzureRef optionally points to an Azure OAuth2 client stored as a scy
	// resource ("<URL>|<kmsKey>"); when set it supplies clientId/tenantId.
	AzureRef   scy.EncodedResource `yaml:"azureRef" json:"azureRef,omitempty"`
	Scopes     []string            `yaml:"scopes" json:"scopes"`
	Guardrails Guardrails          `yaml:"guardrails" json:"guardrails"`
	Safety     Safety              `yaml:"safety" json:"safety"`
	Output     Output              `yaml:"output" json:"output"`
	Search     Search              `yaml:"search" json:"search"`
	Calendar   Calendar            `yaml:"calendar" json:"calendar"`
	Storage    Storage             `yaml:"storage" json:"storage"`
	Retrieval  Retrieval           `yaml:"retrieval" json:"retrieval"`
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(raw []byte) []byte {
	return envVarPattern.ReplaceAllFunc(raw, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// Load reads, expands, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(expandEnv(raw), cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with all defaults applied and no identity
// settings; callers (tests) fill in what they need.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func boolPtr(v bool) *bool { return &v }

func (c *Config) ApplyDefaults() {
	if len(c.Scopes) == 0 {
		c.Scopes = []string{
			"User.Read", "Mail.ReadWrite", "Mail.Send",
			"Calendars.ReadWrite", "Files.Read.All", "offline_access",
		}
	}
	if c.Guardrails.Email.RequireDraftApproval == nil {
		c.Guardrails.Email.RequireDraftApproval = boolPtr(true)
	}
	if c.Guardrails.Email.StripSensitiveFromLogs == nil {
		c.Guardrails.Email.StripSensitiveFromLogs = boolPtr(true)
	}
	if c.Guardrails.Audit.Enabled == nil {
		c.Guardrails.Audit.Enabled = boolPtr(true)
	}
	if c.Guardrails.Audit.LogPath == "" {
		c.Guardrails.Audit.LogPath = "./data/audit/audit.jsonl"
	}
	if c.Guardrails.Audit.RetentionDays <= 0 {
		c.Guardrails.Audit.RetentionDays = 90
	}
	if c.Safety.RequireConfirmForWrites == nil {
		c.Safety.RequireConfirmForWrites = boolPtr(true)
	}
	if c.Output.DefaultMaxChars <= 0 {
		c.Output.DefaultMaxChars = 4000
	}
	if c.Output.HardMaxChars <= 0 {
		c.Output.HardMaxChars = 20000
	}
	if c.Search.DefaultTop <= 0 {
		c.Search.DefaultTop = 10
	}
	if c.Search.MaxTop <= 0 {
		c.Search.MaxTop = 50
	}
	if c.Calendar.DefaultTimezone == "" {
		c.Calendar.DefaultTimezone = "Asia/Dubai"
	}
	if c.Storage.TokenPath == "" {
		c.Storage.TokenPath = "./data/tokens"
	}
	if c.Retrieval.Enabled == nil {
		c.Retrieval.Enabled = boolPtr(true)
	}
	if c.Retrieval.DataSource == "" {
		c.Retrieval.DataSource = "sharePoint"
	}
}

func (c *Config) Validate() error {
	if c.Azure.ClientID == "" && c.AzureRef == "" {
		return errors.New("azure.clientId is required (set GRAPH_MCP_CLIENT_ID or provide azureRef)")
	}
	if c.Azure.TenantID == "" && c.AzureRef == "" {
		return errors.New("azure.tenantId is required (set GRAPH_MCP_TENANT_ID or provide azureRef)")
	}
	if c.Retrieval.DataSource != "sharePoint" && c.Retrieval.DataSource != "oneDriveBusiness" {
		return fmt.Errorf("retrieval.dataSource must be sharePoint or oneDriveBusiness, got %q", c.Retrieval.DataSource)
	}
	return nil
}

// ResolvePath expands env vars and a leading ~ in a storage path and makes
// relative paths absolute against the working directory.
func ResolvePath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	if !filepath.IsAbs(p) {
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
	}
	return p
}
