package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"catalog-adaptation-service/internal/config"
	"catalog-adaptation-service/internal/models"
)

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Inspect marketplace templates",
	}

	cmd.AddCommand(newTemplatesListCmd())
	cmd.AddCommand(newTemplatesShowCmd())

	return cmd
}

func newTemplatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List supported marketplaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, registry, err := loadRegistry(config.Load())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MARKETPLACE\tNAME\tVERSION\tATTRIBUTES\tREQUIRED")
			for _, key := range registry.ListSupportedMarketplaces() {
				tmpl, err := registry.Get(key)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
					key, tmpl.Name, tmpl.Version, len(tmpl.Attributes), len(tmpl.RequiredAttributes()))
			}
			return tw.Flush()
		},
	}
}

func newTemplatesShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <marketplace>",
		Short: "Print the template of a marketplace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := models.ParseMarketplaceKey(args[0])
			if err != nil {
				return err
			}
			_, registry, err := loadRegistry(config.Load())
			if err != nil {
				return err
			}
			tmpl, err := registry.Get(key)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(tmpl)
			case "yaml", "":
				encoder := yaml.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent(2)
				if err := encoder.Encode(tmpl); err != nil {
					return err
				}
				return encoder.Close()
			}
			return fmt.Errorf("unsupported output %q", output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", "Output format: yaml or json")

	return cmd
}
