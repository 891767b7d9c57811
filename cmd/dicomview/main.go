package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/recera/dicomview/internal/config"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var configDir string

	var rootCmd = &cobra.Command{
		Use:   "dicomview",
		Short: "dicomview - DICOM stack viewer",
		Long: `dicomview serves DICOM exams to a browser viewer, either running the
viewer in the page or driving it from the server over a websocket, and
can browse a stack directly in the terminal.`,
		Version:      versionString(),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "Directory containing "+config.FileName)

	rootCmd.AddCommand(newServeCommand(&configDir))
	rootCmd.AddCommand(newViewCommand(&configDir))
	rootCmd.AddCommand(newVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dicomview version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "dicomview "+versionString())
		},
	}
}

// loadConfig reads the configuration, falling back to defaults when the
// file cannot be used
func loadConfig(dir string) *config.Config {
	cfg, err := config.Load(dir)
	if err != nil {
		log.Printf("⚠️  Failed to load %s: %v (using defaults)", config.FileName, err)
		cfg = config.DefaultConfig()
	}
	return cfg
}
