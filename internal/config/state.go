package config

import (
	"fmt"
	"time"
)

// StateConfig holds configuration for signing and validating OAuth state tokens.
type StateConfig struct {
	Secret string
	TTL    time.Duration
}

// StateConfig returns the state-token configuration. STATE_SECRET is required
// once the Bullhorn OAuth flow is in use.
func (c *Config) StateConfig() (*StateConfig, error) {
	minutes := c.StateTTLMinutes
	if minutes == 0 {
		minutes = DefaultStateTTLMinutes
	}

	sc := &StateConfig{
		Secret: c.StateSecret,
		TTL:    time.Duration(minutes) * time.Minute,
	}
	if err := sc.normalize(); err != nil {
		return nil, err
	}
	return sc, nil
}

// normalize validates the configuration.
func (c *StateConfig) normalize() error {
	if c.Secret == "" {
		return fmt.Errorf("STATE_SECRET is required but not set")
	}
	if len(c.Secret) < 16 {
		return fmt.Errorf("STATE_SECRET must be at least 16 characters")
	}
	if c.TTL < time.Minute {
		return fmt.Errorf("STATE_TTL_MINUTES must be at least 1 minute, got: %v", c.TTL)
	}
	return nil
}
