package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wave/molly/internal/config"
	"github.com/wave/molly/internal/server"
)

var (
	servePort       int
	serveConfigFile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start an HTTP server that provisions voice sessions, handles the Bullhorn connection and bridges conversations to candidate search.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT)")
	serveCmd.Flags().StringVar(&serveConfigFile, "config", "", "Optional JSON config file whose values act as defaults")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadServeConfig(serveConfigFile, servePort)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start()
}

// loadServeConfig loads configuration and applies the --port override.
func loadServeConfig(path string, port int) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if port != 0 {
		cfg.Port = port
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if err := cfg.RequireOpenAI(); err != nil {
		return nil, err
	}
	return cfg, nil
}
