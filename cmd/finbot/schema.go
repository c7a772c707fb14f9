package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/finflow/pkg/finbot/slots"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [category]",
	Short: "Print the extraction schema of a calculator category",
	Long: `Prints the JSON schema that extracted calculator inputs must satisfy.
Without an argument, lists the categories.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if len(args) == 0 {
			for _, c := range a.registry.Categories() {
				schema, _ := a.registry.Schema(c)
				fmt.Fprintf(out, "%s\trequired: %v\n", c, schema.Required())
			}
			return nil
		}

		schema, ok := a.registry.Schema(slots.Category(args[0]))
		if !ok {
			return fmt.Errorf("unknown category %q", args[0])
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(schema.JSONSchema())
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
