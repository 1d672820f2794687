package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/verdantlab/flora-cli/internal/catalog"
	"github.com/verdantlab/flora-cli/internal/merge"
	"github.com/verdantlab/flora-cli/internal/model"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage merge precedence rules",
	Long:  "Commands for listing and importing the per-field rules that decide which source wins during reconciliation.",
}

// -- rules list --

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured rules",
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

		rules, err := catalog.New(pool).Rules(ctx)
		if err != nil {
			return eris.Wrap(err, "rules list")
		}

		if len(rules) == 0 {
			fmt.Fprintln(os.Stderr, "No rules configured. Run 'flora rules import' to seed them.")
			return nil
		}

		formatRules(os.Stdout, rules)
		return nil
	},
}

// -- rules import --

var rulesImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import rules from a YAML file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Merge.RulesFile
		}

		rules, err := merge.LoadRulesFile(path)
		if err != nil {
			return err
		}

		pool, err := initPool(ctx, "db")
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := catalog.Migrate(ctx, pool); err != nil {
			return err
		}

		n, err := catalog.New(pool).UpsertRules(ctx, rules)
		if err != nil {
			return eris.Wrap(err, "rules import")
		}

		fmt.Printf("Imported %d rules from %s.\n", n, path)
		return nil
	},
}

func init() {
	rulesImportCmd.Flags().String("file", "", "rules file (default from config)")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesImportCmd)
	rootCmd.AddCommand(rulesCmd)
}

// formatRules writes a tabular rule listing to w.
func formatRules(out io.Writer, rules []model.Rule) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "FIELD\tSTRATEGY\tPRIORITY")
	_, _ = fmt.Fprintln(w, "-----\t--------\t--------")

	for _, r := range rules {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n",
			r.FieldName, r.Strategy, strings.Join(r.Priority(), " > "))
	}
	_ = w.Flush()
}
