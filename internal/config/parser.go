// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/fgeck/hostfan/internal/models"
	"github.com/spf13/viper"
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")
	return &Parser{v: v}
}

// LoadFile loads settings from a file path.
func (p *Parser) LoadFile(path string) (*models.Settings, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads settings from a string (useful for testing).
func (p *Parser) LoadReader(content string) (*models.Settings, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.Settings, error) {
	cfg := &models.Settings{
		SSH: models.SSHOptions{
			Binary:         p.expandEnv(p.v.GetString("ssh.binary")),
			ConnectTimeout: p.v.GetDuration("ssh.connect_timeout"),
			LogLevel:       p.v.GetString("ssh.log_level"),
		},
		Insecure: p.v.GetBool("run.insecure"),
		Capture:  p.v.GetBool("run.capture"),
	}
	cfg.SSH.ApplyDefaults()

	// run.procs: 0 is a meaningful value (unlimited), so only fall back to
	// the default when the key is absent.
	if p.v.IsSet("run.procs") {
		cfg.MaxProcs = p.v.GetInt("run.procs")
	} else {
		cfg.MaxProcs = models.DefaultMaxProcs
	}

	if cfg.MaxProcs < 0 {
		return nil, fmt.Errorf("run.procs must be >= 0")
	}
	if cfg.SSH.ConnectTimeout < 0 {
		return nil, fmt.Errorf("ssh.connect_timeout must be positive")
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on loaded settings.
func Validate(cfg *models.Settings) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.SSH.Binary == "" {
		return fmt.Errorf("ssh.binary is required")
	}

	if cfg.MaxProcs < 0 {
		return fmt.Errorf("run.procs must be >= 0")
	}

	return nil
}
