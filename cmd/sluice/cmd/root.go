package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	sluice "github.com/okonak/sluice"
	"github.com/okonak/sluice/defs"
)

var defsPath string

var rootCmd = &cobra.Command{
	Use:   "sluice",
	Short: "Schema-driven validation and JSON/XML serialization",
	Long: `sluice validates untrusted input against declarative object
definitions and converts payloads between JSON and XML using the same
definitions.

Definition files are YAML, JSON or JSONC documents (see the defs package).`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&defsPath, "defs", "", "object definition file (.yaml/.yml/.json/.jsonc)")
}

// loadRegistry builds a registry from the --defs flag.
func loadRegistry() (*sluice.Registry, error) {
	if defsPath == "" {
		return nil, fmt.Errorf("--defs is required")
	}
	reg := sluice.NewRegistry()
	if err := defs.Register(reg, defsPath); err != nil {
		return nil, err
	}
	return reg, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return readAllStdin()
	}
	return os.ReadFile(path)
}
