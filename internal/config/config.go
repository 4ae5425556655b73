// Package config loads and validates the YAML parameter file driving a
// build: global URL parameters, dev/prod profiles and the per-site blocks.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	derrors "sitewright/internal/errors"
)

// DefaultProfile is applied when no profile is selected on the command line.
const DefaultProfile = "dev"

// Config is the loaded parameter file with the selected profile applied.
type Config struct {
	DataRoot       string             `yaml:"data_root"`
	Protocol       string             `yaml:"protocol"`
	HostnameSuffix string             `yaml:"hostname_suffix"`
	Author         string             `yaml:"author"`
	Params         map[string]any     `yaml:"params,omitempty"`
	Profiles       map[string]Profile `yaml:"profiles,omitempty"`
	Sites          []Site             `yaml:"sites"`

	// Profile is the name of the overlay applied at load time.
	Profile string `yaml:"-"`
}

// Profile overrides top-level scalars and names the deploy target.
type Profile struct {
	TargetRoot     string `yaml:"target_root,omitempty"`
	Protocol       string `yaml:"protocol,omitempty"`
	HostnameSuffix string `yaml:"hostname_suffix,omitempty"`
}

// Site is one website block.
type Site struct {
	Name        string `yaml:"name"`
	Hostname    string `yaml:"hostname"`
	AccentColor string `yaml:"accent_color"`
	NavTitle    string `yaml:"nav_title,omitempty"`
	OrcidID     string `yaml:"orcid,omitempty"`

	// Accent is parsed from AccentColor at load time.
	Accent RGB `yaml:"-"`
}

// Load reads the parameter file, expands environment variables, applies the
// named profile and validates the result. An `.env` file next to the config
// is loaded first when present.
func Load(configPath, profile string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, derrors.WrapFatal(err, derrors.CategoryConfig, "load .env file")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, derrors.Fatal(derrors.CategoryConfig, "configuration file not found").
			WithContext("path", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryConfig, "read configuration file")
	}

	// Expand environment variables in the YAML content before parsing.
	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, derrors.WrapFatal(err, derrors.CategoryConfig, "parse configuration file")
	}

	// Apply defaults
	if config.DataRoot == "" {
		config.DataRoot = filepath.Dir(configPath)
	}
	if config.Protocol == "" {
		config.Protocol = "https://"
	}
	if profile == "" {
		profile = DefaultProfile
	}
	config.Profile = profile

	if overlay, ok := config.Profiles[profile]; ok {
		if overlay.Protocol != "" {
			config.Protocol = overlay.Protocol
		}
		if overlay.HostnameSuffix != "" {
			config.HostnameSuffix = overlay.HostnameSuffix
		}
	} else if profile != DefaultProfile {
		return nil, derrors.Fatal(derrors.CategoryConfig, "profile not defined").
			WithContext("profile", profile)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if len(c.Sites) == 0 {
		return derrors.Fatal(derrors.CategoryConfig, "no sites configured")
	}

	seen := make(map[string]bool)
	for i := range c.Sites {
		site := &c.Sites[i]
		if site.Name == "" {
			return derrors.Fatal(derrors.CategoryConfig, "site is missing a name").
				WithContext("index", i)
		}
		if seen[site.Name] {
			return derrors.Fatal(derrors.CategoryConfig, "duplicate site name").
				WithContext("site", site.Name)
		}
		seen[site.Name] = true
		if site.Hostname == "" {
			return derrors.Fatal(derrors.CategoryConfig, "site is missing a hostname").
				WithContext("site", site.Name)
		}
		accent, err := ParseColor(site.AccentColor)
		if err != nil {
			return derrors.WrapFatal(err, derrors.CategoryConfig, "invalid accent color").
				WithContext("site", site.Name)
		}
		site.Accent = accent
	}
	return nil
}

// BaseURL returns the canonical root URL of a site under the active profile,
// without a trailing slash.
func (c *Config) BaseURL(site Site) string {
	return c.Protocol + site.Hostname + c.HostnameSuffix
}

// BuildRoot is the output directory for the active profile.
func (c *Config) BuildRoot() string {
	return filepath.Join(c.DataRoot, "build", c.Profile)
}

// CacheDir holds collaborator data and derived media between runs.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataRoot, "cache")
}

// ContentDir holds the page sources.
func (c *Config) ContentDir() string {
	return filepath.Join(c.DataRoot, "content")
}

// StaticDir holds static assets, shared under "all" plus one directory per
// site.
func (c *Config) StaticDir() string {
	return filepath.Join(c.DataRoot, "static")
}

// TemplatesDir holds the render templates.
func (c *Config) TemplatesDir() string {
	return filepath.Join(c.DataRoot, "templates")
}

// TargetRoot returns the deploy target of the active profile, empty when the
// profile has none.
func (c *Config) TargetRoot() string {
	return c.Profiles[c.Profile].TargetRoot
}

// IsDev reports whether the build runs under the dev profile. Unpublished
// publication content is only visible in dev.
func (c *Config) IsDev() bool {
	return c.Profile == DefaultProfile
}

// NavigationTitle is the display title of the site's structure root.
func (s Site) NavigationTitle() string {
	if s.NavTitle != "" {
		return s.NavTitle
	}
	return capitalize(s.Name)
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

const exampleConfig = `# sitewright parameter file
#
# Environment variables are expanded before parsing; a .env file next to
# this one is loaded first.

data_root: .
protocol: https://
hostname_suffix: ""
author: Jane Doe

# Arbitrary parameters available to every template.
params:
  footer_note: Built with sitewright

profiles:
  dev:
    protocol: http://
    hostname_suffix: .localhost:8000
  prod:
    target_root: /var/www

sites:
  - name: me
    hostname: me.example.com
    accent_color: "#1e90ff"
    nav_title: About Me
    orcid: 0000-0000-0000-0000
  - name: software
    hostname: software.example.com
    accent_color: "#2aa"
`

// Init writes a commented example parameter file. It refuses to overwrite an
// existing file unless force is set.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}
	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
