// Package main provides the MCP server entry point for the Cube agent.
// The server speaks the Model Context Protocol over stdin/stdout and
// forwards describe/read operations to a Cube.dev deployment.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cube-agent/src/auth"
	"cube-agent/src/config"
	"cube-agent/src/cube"
	"cube-agent/src/mcp"
	"cube-agent/src/query"
	"cube-agent/src/store"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cube-mcp",
	Short: "MCP server exposing a Cube.dev deployment to LLM agents",
	Long: `cube-mcp bridges a Cube.dev semantic layer and the Model Context
Protocol. It exposes two tools:

- describe_data: list the available cubes, measures, and dimensions
- read_data:     run a query and get back a Data ID plus a readable preview

The full JSON of each result set stays retrievable through the data://{id}
resource until the process exits.

Configuration comes from CUBE_ENDPOINT, CUBE_API_SECRET, and
CUBE_TOKEN_PAYLOAD, with flags taking precedence. Any unrecognized --key
value pair is added to the token payload as an extra claim.`,
	// Unknown flags become token claims instead of errors.
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
	RunE:               run,
}

func init() {
	rootCmd.Flags().String("endpoint", "", "Cube API base URL (env: CUBE_ENDPOINT)")
	rootCmd.Flags().String("api-secret", "", "secret used to sign API tokens (env: CUBE_API_SECRET)")
	rootCmd.Flags().String("token-payload", "", "JSON object of extra token claims (env: CUBE_TOKEN_PAYLOAD)")
	rootCmd.Flags().Duration("result-ttl", 0, "evict cached result sets after this duration; 0 keeps them until exit")
	rootCmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().String("log-dir", "", "also write logs to server.log in this directory")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags(), os.Args[1:])
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	tokens := auth.NewTokenManager(cfg.APISecret, cfg.TokenPayload)
	client := cube.NewClient(cfg.Endpoint, tokens)
	results := store.NewResultStore(cfg.ResultTTL)
	defer results.Stop()
	svc := query.NewService(client, results)

	log.WithField("endpoint", cfg.Endpoint).Info("starting Cube MCP server on stdio")
	return mcp.NewServer(svc, results).Run()
}

// setupLogging sends logs to stderr, since stdout carries the MCP transport.
func setupLogging(cfg *config.Config) error {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	log.SetLevel(level)

	out := io.Writer(os.Stderr)
	if cfg.LogDir != "" {
		f, err := os.OpenFile(filepath.Join(cfg.LogDir, "server.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
	}
	log.SetOutput(out)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
