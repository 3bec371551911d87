package command

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewSchemaCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "schema [uri]...",
		Short: "Load schema sources and list the properties they define.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := getContext()
			defer cancel()
			c, err := openContext(ctx, v)
			if err != nil {
				return err
			}
			defer c.Close()
			if err = c.LoadSchemas(ctx, args...); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ALIAS\tIDENTIFIER\tRANGE")
			for _, iri := range c.Ontology.Properties() {
				p, err := c.Ontology.PropertyDefinition(iri)
				if err != nil {
					return err
				}
				rng := make([]string, 0, len(p.Range))
				for _, r := range p.Range {
					rng = append(rng, string(r))
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", strings.Join(p.Aliases, ","), string(iri), strings.Join(rng, ","))
			}
			return w.Flush()
		},
	}
}
