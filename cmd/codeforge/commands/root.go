// Package commands provides the CLI commands for CodeForge.
package commands

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	directory string
)

var rootCmd = &cobra.Command{
	Use:   "codeforge",
	Short: "CodeForge - safe shell command execution engine",
	Long: `CodeForge executes shell commands under a permission policy, with
timeouts, output caps, and concurrent batch dispatch.

Run 'codeforge exec -- <command>' to execute a single command, or
'codeforge batch' to dispatch several tool invocations concurrently.
'codeforge policy' shows how the permission rules classify a command
without running it.`,
	Version: Version,
	// If no subcommand, show help
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVarP(&directory, "directory", "d", "", "Working directory")

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("codeforge %s (%s)\n", Version, BuildTime))

	// Add subcommands
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(policyCmd)
}

// Execute runs the root command.
func Execute() error {
	// Local .env values feed config interpolation and env overrides.
	_ = godotenv.Load()
	return rootCmd.Execute()
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
