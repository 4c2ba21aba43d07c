package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	sluice "github.com/okonak/sluice"
)

var describeType string

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print the validation rules of an object definition",
	RunE:  runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
	describeCmd.Flags().StringVar(&describeType, "type", "", "object definition name (default: all)")
}

func runDescribe(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	schemas := sluice.CompileSchemas(reg)
	names := reg.Names()
	if describeType != "" {
		if _, ok := schemas[describeType]; !ok {
			return fmt.Errorf("no definition named %q", describeType)
		}
		names = []string{describeType}
	}
	for _, name := range names {
		fmt.Printf("%s:\n", name)
		help := sluice.DescribeSchema(schemas[name])
		fields := make([]string, 0, len(help))
		for f := range help {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			if len(help[f]) == 0 {
				fmt.Printf("  %s\n", f)
				continue
			}
			fmt.Printf("  %s: %s\n", f, strings.Join(help[f], " "))
		}
	}
	return nil
}
