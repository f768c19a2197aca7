// Package config loads the subscription configuration for a databus process:
// the domain to join and, per topic, whether it is enabled and which delivery
// profile it uses.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/casualjim/databus"
)

// Profile names accepted in configuration files.
const (
	ProfileReliableCritical = "reliable_critical"
	ProfileReliableStandard = "reliable_standard"
	ProfileBestEffort       = "best_effort"
)

// Subscription configures one topic.
type Subscription struct {
	Topic   string `yaml:"topic"`
	Profile string `yaml:"profile"`
	Depth   int32  `yaml:"depth"`
	Enabled *bool  `yaml:"enabled"`
}

// Config is the root of a configuration file:
//
//	domain: 0
//	subscriptions:
//	  - topic: rt/vss/signals
//	    profile: reliable_standard
//	    depth: 10
//	  - topic: rt/telemetry/gauges
//	    profile: best_effort
//	    enabled: false
type Config struct {
	Domain        uint32         `yaml:"domain"`
	Subscriptions []Subscription `yaml:"subscriptions"`
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a configuration document and validates every subscription.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	for i := range cfg.Subscriptions {
		sub := &cfg.Subscriptions[i]
		if sub.Topic == "" {
			return nil, fmt.Errorf("subscription %d: topic is required", i)
		}
		if _, err := sub.Qos(); err != nil {
			return nil, fmt.Errorf("subscription %q: %w", sub.Topic, err)
		}
	}
	return &cfg, nil
}

// IsEnabled reports whether the subscription should be created; the default
// is enabled.
func (s Subscription) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Qos builds the policy named by the profile. An empty profile means
// reliable_standard. Depth applies to the keep-last profiles; zero picks the
// profile's canonical depth.
func (s Subscription) Qos() (*databus.Qos, error) {
	switch s.Profile {
	case ProfileReliableCritical:
		return databus.ReliableCritical(), nil
	case ProfileReliableStandard, "":
		return databus.ReliableStandard(depthOr(s.Depth, 100)), nil
	case ProfileBestEffort:
		return databus.BestEffortProfile(depthOr(s.Depth, 1)), nil
	default:
		return nil, fmt.Errorf("unknown profile %q", s.Profile)
	}
}

func depthOr(depth, fallback int32) int32 {
	if depth > 0 {
		return depth
	}
	return fallback
}

// Enabled returns the subscriptions that should be created.
func (c *Config) Enabled() []Subscription {
	subs := make([]Subscription, 0, len(c.Subscriptions))
	for _, s := range c.Subscriptions {
		if s.IsEnabled() {
			subs = append(subs, s)
		}
	}
	return subs
}
