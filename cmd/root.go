package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the catalog-adapter command tree
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog-adapter",
		Short: "Adapt product catalogs to marketplace upload templates",
		Long: `catalog-adapter maps seller catalog spreadsheets onto the attribute
templates of marketplaces such as Namshi, Amazon and Noon.

It fills missing attributes, validates the result against the marketplace
rules and scores how confidently each product was adapted.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAdaptCmd())
	cmd.AddCommand(newTemplatesCmd())

	return cmd
}
