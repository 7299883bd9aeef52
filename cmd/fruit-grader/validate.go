package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/fruit-grader/internal/config"
	"github.com/sweeney/fruit-grader/internal/logic"
)

// NewValidateCommand checks the config file and prints the grade table.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "validate",
		Short:   "Check the config file and print the grade table",
		GroupID: gDaemon,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			printBands(os.Stdout, cfg.Product.Name, cfg.Product.MinWeight, cfg.Bands())
			fmt.Printf("%s %s is valid\n", color.New(color.Bold, color.FgGreen).Sprint("✔"), configPath)
			return nil
		},
	}
}

func printBands(w io.Writer, product string, minWeight float64, bands []logic.GradeBand) {
	fmt.Fprintf(w, "%s (minimum %s)\n", bold("Product %s", product), formatGrams(minWeight))
	for _, b := range bands {
		fmt.Fprintf(w, "  %-6s %8s .. %-8s sound=%s\n", b.Name, formatGrams(b.Min), formatGrams(b.Max), b.Sound)
	}
}

func formatGrams(g float64) string {
	if math.IsInf(g, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.0f g", g)
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
