package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lca_wages/internal/wage"
)

var annualiseCmd = &cobra.Command{
	Use:   "annualise RATE UNIT",
	Short: "Print the annual wage for a rate and pay unit",
	Example: "  lcactl annualise 55.25 Hour\n" +
		"  lcactl annualise 4000 Bi-Weekly",
	Args: cobra.ExactArgs(2),
	RunE: runAnnualise,
}

func init() {
	rootCmd.AddCommand(annualiseCmd)
}

func runAnnualise(_ *cobra.Command, args []string) error {
	rate, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid rate %q", args[0])
	}

	annual := wage.Annualise(&rate, nil, args[1], wage.StrategyFrom)
	if annual == nil {
		return errors.New("no annual wage: unknown unit or result outside the accepted range")
	}
	fmt.Printf("%.2f\n", *annual)
	return nil
}
