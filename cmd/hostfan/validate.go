package main

import (
	"fmt"
	"os"

	"github.com/fgeck/hostfan/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long:  `Validate the configuration file without running any ssh sessions.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		log.Error().Msg("config file is required")
		return cmd.Help()
	}

	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Error().Str("file", configFile).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", configFile)
	}

	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  SSH binary: %s\n", cfg.SSH.Binary)
	fmt.Printf("  Connect timeout: %s\n", cfg.SSH.ConnectTimeout)
	fmt.Printf("  SSH log level: %s\n", cfg.SSH.LogLevel)
	if cfg.MaxProcs == 0 {
		fmt.Printf("  Max parallel sessions: unlimited\n")
	} else {
		fmt.Printf("  Max parallel sessions: %d\n", cfg.MaxProcs)
	}
	fmt.Printf("  Insecure host keys: %v\n", cfg.Insecure)
	fmt.Printf("  Capture stdout: %v\n", cfg.Capture)

	return nil
}
