package config

import (
	"fmt"
	"os"
	"strings"
)

// Allowed PostgreSQL SSL modes.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks configuration validity. Called once at startup; every
// component may assume a validated Config afterwards.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is not set", ErrMissingAPIKey)
	}

	if err := c.validateAI(); err != nil {
		return err
	}

	if err := c.validateRetrieval(); err != nil {
		return err
	}

	if err := c.validateIndex(); err != nil {
		return err
	}

	if err := c.validateNotion(); err != nil {
		return err
	}

	return c.validateStorage()
}

func (c *Config) validateAI() error {
	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model name cannot be empty", ErrInvalidModelName)
	}

	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: %.2f (must be between 0.0 and 2.0)", ErrInvalidTemperature, c.Temperature)
	}

	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder model cannot be empty", ErrInvalidEmbedderModel)
	}

	if c.EmbedderDimension < 1 || c.EmbedderDimension > 4096 {
		return fmt.Errorf("%w: %d (must be between 1 and 4096)", ErrInvalidEmbedderDimension, c.EmbedderDimension)
	}

	return nil
}

func (c *Config) validateRetrieval() error {
	if c.TopK < 1 || c.TopK > 50 {
		return fmt.Errorf("%w: %d (must be between 1 and 50)", ErrInvalidTopK, c.TopK)
	}

	if c.EmbedAttempts < 1 || c.EmbedAttempts > 10 {
		return fmt.Errorf("%w: attempts %d (must be between 1 and 10)", ErrInvalidRetry, c.EmbedAttempts)
	}

	if c.EmbedBackoffMs < 0 {
		return fmt.Errorf("%w: backoff %dms (cannot be negative)", ErrInvalidRetry, c.EmbedBackoffMs)
	}

	if c.EmbedPerMinute < 0 {
		return fmt.Errorf("%w: rate %d/min (cannot be negative)", ErrInvalidRetry, c.EmbedPerMinute)
	}

	return nil
}

func (c *Config) validateIndex() error {
	name := strings.TrimSpace(c.IndexName)
	if name == "" {
		return fmt.Errorf("%w: index name cannot be empty", ErrInvalidIndexName)
	}

	// The index name becomes a table identifier; restrict it to a safe
	// subset instead of interpolating arbitrary strings into DDL.
	for _, r := range name {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if !ok {
			return fmt.Errorf("%w: %q (lowercase letters, digits and underscores only)", ErrInvalidIndexName, name)
		}
	}

	if c.HNSWM < 2 || c.HNSWM > 100 {
		return fmt.Errorf("%w: m=%d (must be between 2 and 100)", ErrInvalidHNSW, c.HNSWM)
	}

	if c.HNSWEfConstruction < 2*c.HNSWM || c.HNSWEfConstruction > 1000 {
		return fmt.Errorf("%w: ef_construction=%d (must be between 2*m and 1000)", ErrInvalidHNSW, c.HNSWEfConstruction)
	}

	if c.HNSWEfSearch < 1 || c.HNSWEfSearch > 1000 {
		return fmt.Errorf("%w: ef_search=%d (must be between 1 and 1000)", ErrInvalidHNSW, c.HNSWEfSearch)
	}

	return nil
}

func (c *Config) validateNotion() error {
	if strings.TrimSpace(c.NotionToken) == "" {
		return fmt.Errorf("%w: set NOTION_API_KEY or notion_token in the config file", ErrMissingNotionToken)
	}

	if strings.TrimSpace(c.NotionDatabaseID) == "" {
		return fmt.Errorf("%w: set NOTION_DATABASE_ID or notion_database_id in the config file", ErrMissingNotionDatabase)
	}

	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be between 1 and 65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidPostgresPassword)
	}

	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}
