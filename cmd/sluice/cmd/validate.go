package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	sluice "github.com/okonak/sluice"
)

var (
	validateType    string
	validateInput   string
	validateStrict  bool
	validatePartial bool
	validateTimeout time.Duration
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a JSON payload against an object definition",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateType, "type", "", "object definition name")
	validateCmd.Flags().StringVar(&validateInput, "input", "-", "JSON payload file (default stdin)")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "reject keys not declared in the schema")
	validateCmd.Flags().BoolVar(&validatePartial, "partial", false, "treat the payload as a partial update")
	validateCmd.Flags().DurationVar(&validateTimeout, "timeout", 10*time.Second, "validation deadline")
}

func runValidate(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	schemas := sluice.CompileSchemas(reg)
	name := validateType
	if name == "" {
		if names := reg.Names(); len(names) == 1 {
			name = names[0]
		} else {
			return fmt.Errorf("--type is required when the definition file declares multiple objects")
		}
	}
	schema, ok := schemas[name]
	if !ok {
		return fmt.Errorf("no definition named %q", name)
	}

	data, err := readInput(validateInput)
	if err != nil {
		return err
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("malformed JSON payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
	defer cancel()

	check := schema.Check
	if validatePartial {
		check = schema.CheckPartial
	}
	cleaned, err := check(ctx, obj, sluice.CheckOptions{Strict: validateStrict})
	if err != nil {
		if ve, ok := sluice.AsValidationError(err); ok {
			fmt.Fprintf(os.Stderr, "invalid: %s: %s\n", ve.Pointer(), ve.Message)
			os.Exit(1)
		}
		return err
	}
	out, err := json.MarshalIndent(cleaned, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func readAllStdin() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}
