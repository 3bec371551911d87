package command

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cayleygraph/plaza/internal/config"
	"github.com/cayleygraph/plaza/internal/repl"
)

func NewShellCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:     "shell",
		Aliases: []string{"repl"},
		Short:   "Drop into an interactive shell over the configured spaces.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := getContext()
			defer cancel()
			c, err := openContext(ctx, v)
			if err != nil {
				return err
			}
			defer c.Close()
			return repl.Repl(ctx, c, v.GetDuration(config.KeyTimeout))
		},
	}
}
