// Package main provides the devteam binary entry point. Devteam runs an
// AI development team that takes a project from raw requirements through
// analysis, design, implementation planning, and quality review, producing
// markdown artifacts along the way.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/c360studio/devteam/llm/providers"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "devteam"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Provider API keys commonly live in a local .env file.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "devteam",
		Short: "AI development team orchestrator",
		Long: `Devteam orchestrates a team of role agents (project manager, analyst,
architect, designers, developers, testers, quality reviewers) through a
staged software development workflow.

Give it a project name and raw requirements; it produces structured
requirements, an architecture, design and implementation plans, a test
plan, and quality reviews as markdown documents.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML, overrides discovery)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(runCmd(&configPath, &logLevel))
	cmd.AddCommand(statusCmd(&configPath, &logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})

	return cmd
}

func runCmd(configPath, logLevel *string) *cobra.Command {
	var (
		description      string
		requirements     string
		requirementsFile string
		metricsAddr      string
	)

	cmd := &cobra.Command{
		Use:   "run <project-name>",
		Short: "Run the development workflow for a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := requirements
			if requirementsFile != "" {
				data, err := os.ReadFile(requirementsFile)
				if err != nil {
					return fmt.Errorf("read requirements file: %w", err)
				}
				req = string(data)
			}
			if req == "" {
				return fmt.Errorf("requirements are required: use --requirements or --requirements-file")
			}

			app, err := newApp(*configPath, *logLevel, metricsAddr)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Run(cmd.Context(), args[0], description, req)
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Short project description")
	cmd.Flags().StringVarP(&requirements, "requirements", "r", "", "Raw project requirements")
	cmd.Flags().StringVar(&requirementsFile, "requirements-file", "", "File containing the raw requirements")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	return cmd
}

func statusCmd(configPath, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <project-name>",
		Short: "Show the recorded history of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(*configPath, *logLevel, "")
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Status(cmd.Context(), args[0])
		},
	}
}
