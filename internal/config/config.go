// Package config loads cmd/gateway's YAML configuration and resolves
// provider credentials from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coldharbor/infergate/internal/driver"
)

// ProviderSpec is the YAML shape of one provider entry.
type ProviderSpec struct {
	ID                string `yaml:"id"`
	DisplayName       string `yaml:"displayName"`
	Kind              string `yaml:"kind"`
	Endpoint          string `yaml:"endpoint"`
	ModelHint         string `yaml:"modelHint"`
	Priority          int    `yaml:"priority"`
	ContextTokens     int    `yaml:"contextTokens"`
	MaxOutputTokens   int    `yaml:"maxOutputTokens"`
	TimeoutSeconds    int    `yaml:"timeoutSeconds"`
	RequiresKey       bool   `yaml:"requiresKey"`
	SupportsStreaming bool   `yaml:"supportsStreaming"`
	// CredentialEnv names the environment variable this provider's
	// credential is read from, when RequiresKey is true.
	CredentialEnv string `yaml:"credentialEnv"`
}

// GatewayConfig is the top-level shape of config.yaml.
type GatewayConfig struct {
	ListenAddr string `yaml:"listenAddr"`

	Cache struct {
		MaxSize    int `yaml:"maxSize"`
		TTLMinutes int `yaml:"ttlMinutes"`
	} `yaml:"cache"`

	Router struct {
		CircuitResetWindowSeconds int     `yaml:"circuitResetWindowSeconds"`
		SelfHealIntervalMinutes   int     `yaml:"selfHealIntervalMinutes"`
		SimilarityThreshold       float64 `yaml:"similarityThreshold"`
		ProbeRateLimit            float64 `yaml:"probeRateLimit"`
	} `yaml:"router"`

	Providers []ProviderSpec `yaml:"providers"`

	Webhooks struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"webhooks"`
}

// Load reads and parses a GatewayConfig from path.
func Load(path string) (*GatewayConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg GatewayConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ToProviderConfigs converts the YAML provider specs into driver.ProviderConfig.
func (c *GatewayConfig) ToProviderConfigs() []driver.ProviderConfig {
	out := make([]driver.ProviderConfig, 0, len(c.Providers))
	for _, p := range c.Providers {
		timeout := time.Duration(p.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		out = append(out, driver.ProviderConfig{
			ID:                p.ID,
			DisplayName:       p.DisplayName,
			Kind:              driver.Kind(p.Kind),
			Endpoint:          p.Endpoint,
			ModelHint:         p.ModelHint,
			Priority:          p.Priority,
			ContextTokens:     p.ContextTokens,
			MaxOutputTokens:   p.MaxOutputTokens,
			Timeout:           timeout,
			RequiresKey:       p.RequiresKey,
			SupportsStreaming: p.SupportsStreaming,
		})
	}
	return out
}

// EnvCredentials resolves a provider Kind's API key from the environment
// variable named in its ProviderSpec.CredentialEnv.
type EnvCredentials struct {
	byKind map[driver.Kind]string
}

// NewEnvCredentials builds an EnvCredentials from the configured provider
// specs, reading each RequiresKey provider's CredentialEnv variable once at
// startup.
func NewEnvCredentials(specs []ProviderSpec) *EnvCredentials {
	creds := &EnvCredentials{byKind: make(map[driver.Kind]string)}
	for _, p := range specs {
		if !p.RequiresKey || p.CredentialEnv == "" {
			continue
		}
		if v := os.Getenv(p.CredentialEnv); v != "" {
			creds.byKind[driver.Kind(p.Kind)] = v
		}
	}
	return creds
}

// Get implements driver.CredentialProvider.
func (c *EnvCredentials) Get(kind driver.Kind) (string, bool) {
	v, ok := c.byKind[kind]
	return v, ok
}
