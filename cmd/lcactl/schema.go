package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Create the fact table, staging table and aggregate views",
	Args:  cobra.NoArgs,
	RunE:  runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(_ *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	_, pg, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer pg.Close()

	if err := pg.CreateSchema(ctx); err != nil {
		return err
	}
	fmt.Println("Schema ready.")
	return nil
}
