package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdantlab/flora-cli/internal/catalog"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply catalog schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		pool, err := initPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := catalog.Migrate(ctx, pool); err != nil {
			return err
		}

		fmt.Println("Migrations applied.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
