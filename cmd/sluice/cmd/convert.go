package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okonak/sluice/codec"
)

var (
	convertFrom  string
	convertTo    string
	convertInput string
	convertStrip bool
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a payload between JSON and XML",
	RunE:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertFrom, "from", "json", "input format: json or xml")
	convertCmd.Flags().StringVar(&convertTo, "to", "xml", "output format: json or xml")
	convertCmd.Flags().StringVar(&convertInput, "input", "-", "payload file (default stdin)")
	convertCmd.Flags().BoolVar(&convertStrip, "strip-nulls", false, "omit null-valued fields")
}

func runConvert(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	c := codec.New(reg)

	data, err := readInput(convertInput)
	if err != nil {
		return err
	}

	var structure any
	switch convertFrom {
	case "json":
		structure, err = c.FromJSON(data)
	case "xml":
		structure, err = c.FromXML(data)
	default:
		return fmt.Errorf("unknown input format %q", convertFrom)
	}
	if err != nil {
		return err
	}

	opt := codec.Options{StripNulls: convertStrip}
	var out string
	switch convertTo {
	case "json":
		out, err = c.ToJSON(structure, opt)
	case "xml":
		out, err = c.ToXML(structure, opt)
	default:
		return fmt.Errorf("unknown output format %q", convertTo)
	}
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
