package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration.
type Config struct {
	CurrentContext string             `yaml:"currentContext"`
	Contexts       map[string]Context `yaml:"contexts"`
}

// Context holds connection settings for one board server. Passwords and
// tokens are never stored.
type Context struct {
	Name        string  `yaml:"name" json:"name"`
	Server      string  `yaml:"server" json:"server"`
	FileBaseURL string  `yaml:"fileBaseUrl,omitempty" json:"fileBaseUrl,omitempty"`
	LoginID     string  `yaml:"loginId,omitempty" json:"loginId,omitempty"`
	Boards      []int64 `yaml:"boards,omitempty" json:"boards,omitempty"`
}

// LoadConfig reads the config file. A missing file yields an empty config;
// unknown keys and invalid contexts are errors.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Contexts: map[string]Context{},
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SaveConfig validates cfg and writes it with owner-only permissions.
func SaveConfig(cfg *Config, path string) error {
	if err := cfg.normalize(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func (cfg *Config) normalize() error {
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	for name, ctx := range cfg.Contexts {
		// The map key names the context.
		ctx.Name = name
		if err := ctx.normalize(); err != nil {
			return fmt.Errorf("context %q: %w", name, err)
		}
		cfg.Contexts[name] = ctx
	}
	if cfg.CurrentContext != "" {
		if err := ensureContextExists(cfg, cfg.CurrentContext); err != nil {
			return fmt.Errorf("current %w", err)
		}
	}
	return nil
}

// normalize trims the URLs, checks the login id and sorts the watched boards
// with duplicates removed.
func (c *Context) normalize() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("name is empty")
	}
	server, err := baseURL(c.Server)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	c.Server = server
	if strings.TrimSpace(c.FileBaseURL) != "" {
		if c.FileBaseURL, err = baseURL(c.FileBaseURL); err != nil {
			return fmt.Errorf("fileBaseUrl: %w", err)
		}
	}
	c.LoginID = strings.TrimSpace(c.LoginID)
	if strings.ContainsAny(c.LoginID, " \t:") {
		return fmt.Errorf("login id %q must not contain spaces or colons", c.LoginID)
	}
	boards, err := boardIDs(c.Boards)
	if err != nil {
		return err
	}
	c.Boards = boards
	return nil
}

func baseURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "", errors.New("url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%q is not an http(s) url", raw)
	}
	return raw, nil
}

func boardIDs(in []int64) ([]int64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	seen := make(map[int64]bool, len(in))
	out := make([]int64, 0, len(in))
	for _, id := range in {
		if id <= 0 {
			return nil, fmt.Errorf("invalid board id %d", id)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./mocktalk-config.yaml"
	}
	return filepath.Join(dir, "mocktalk", "config.yaml")
}

func setContext(cfg *Config, ctx Context, makeCurrent bool) {
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	cfg.Contexts[ctx.Name] = ctx
	if cfg.CurrentContext == "" || makeCurrent {
		cfg.CurrentContext = ctx.Name
	}
}

func ensureContextExists(cfg *Config, name string) error {
	if _, ok := cfg.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	return nil
}
