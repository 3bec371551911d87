package command

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cayleygraph/plaza"
	"github.com/cayleygraph/plaza/internal/repl"
	"github.com/cayleygraph/plaza/record"
	"github.com/cayleygraph/plaza/triplespace"
)

const (
	flagSingle     = "single"
	flagCollection = "collection"
)

func registerSpaceFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagSingle, "", "single resource service of the space, if not configured")
	cmd.Flags().String(flagCollection, "", "collection service of the space, if not configured")
}

// connectSpace connects a space given on the command line unless it is
// already known from the configuration.
func connectSpace(ctx context.Context, cmd *cobra.Command, c *plaza.Context, name string) error {
	if _, err := c.Registry.FindSpace(name); err == nil {
		return nil
	}
	var ep triplespace.Endpoints
	ep.Single, _ = cmd.Flags().GetString(flagSingle)
	ep.Collection, _ = cmd.Flags().GetString(flagCollection)
	if ep.Single == "" && ep.Collection == "" {
		return fmt.Errorf("space %q is not configured, use --%s or --%s", name, flagSingle, flagCollection)
	}
	_, err := c.Store.Connect(ctx, name, ep)
	return err
}

func writeRecords(w io.Writer, c *plaza.Context, uris []string) error {
	out := make([]record.Record, 0, len(uris))
	for _, uri := range uris {
		rec, err := c.Registry.FindEntityByURI(uri)
		if err != nil {
			return err
		}
		out = append(out, rec)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

type spaceOp func(s *triplespace.Store, ctx context.Context, space string, data record.Record) (triplespace.Result, error)

func runSpaceOp(v *viper.Viper, op func(cmd *cobra.Command) spaceOp) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		data, err := repl.ParseAssignments(args[1:])
		if err != nil {
			return err
		}
		ctx, cancel := getContext()
		defer cancel()
		c, err := openContext(ctx, v)
		if err != nil {
			return err
		}
		defer c.Close()
		if err = connectSpace(ctx, cmd, c, args[0]); err != nil {
			return err
		}
		res, err := op(cmd)(c.Store, ctx, args[0], data)
		if err != nil {
			return err
		}
		return writeRecords(cmd.OutOrStdout(), c, res.URIs)
	}
}

func NewLoadCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <space> [key=value]...",
		Short: "Load entities of a space from the remote store and print them as JSON.",
		Args:  cobra.MinimumNArgs(1),
		RunE: runSpaceOp(v, func(cmd *cobra.Command) spaceOp {
			if one, _ := cmd.Flags().GetBool("one"); one {
				return (*triplespace.Store).LoadInstance
			}
			return (*triplespace.Store).LoadInstances
		}),
	}
	cmd.Flags().Bool("one", false, "use the single resource service")
	registerSpaceFlags(cmd)
	return cmd
}

func NewCreateCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <space> [key=value]...",
		Short: "Create an entity in the remote store and print it as JSON.",
		Args:  cobra.MinimumNArgs(1),
		RunE: runSpaceOp(v, func(*cobra.Command) spaceOp {
			return (*triplespace.Store).CreateEntity
		}),
	}
	registerSpaceFlags(cmd)
	return cmd
}
