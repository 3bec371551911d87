package command

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cayleygraph/plaza"
	"github.com/cayleygraph/plaza/clog"
	"github.com/cayleygraph/plaza/internal/config"
	"github.com/cayleygraph/plaza/version"
)

const (
	flagConfig = "config"
	flagQuiet  = "quiet"
)

func getContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	go func() {
		select {
		case <-ch:
		case <-ctx.Done():
		}
		signal.Stop(ch)
		cancel()
	}()
	return ctx, cancel
}

// NewRootCmd creates the plaza command with all subcommands. Every call
// uses its own configuration.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	root := &cobra.Command{
		Use:           "plaza",
		Short:         "Local cache of linked data, synchronized with a remote store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if quiet, _ := cmd.Flags().GetBool(flagQuiet); quiet {
				clog.SetLogger(nil)
			}
			file, _ := cmd.Flags().GetString(flagConfig)
			return config.ReadFile(v, file)
		},
	}
	fl := root.PersistentFlags()
	fl.StringP(flagConfig, "c", "", "path to an explicit configuration file")
	fl.BoolP(flagQuiet, "q", false, "hide all log output")
	fl.DurationP("timeout", "t", config.DefaultTimeout, "elapsed time until a remote call times out")
	fl.String("suffix", "", "suffix appended to every service address (default from config)")
	fl.StringSlice("schema", nil, "schema source to load on startup (repeatable)")
	v.BindPFlag(config.KeyTimeout, fl.Lookup("timeout"))
	v.BindPFlag(config.KeySchemas, fl.Lookup("schema"))
	v.BindPFlag(config.KeySuffix, fl.Lookup("suffix"))
	root.AddCommand(
		NewSchemaCmd(v),
		NewLoadCmd(v),
		NewCreateCmd(v),
		NewShellCmd(v),
		NewServeCmd(),
		NewVersionCmd(),
	)
	return root
}

func openContext(ctx context.Context, v *viper.Viper) (*plaza.Context, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	c, err := plaza.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	clog.Infof("opened context in %v", time.Since(start))
	return c, nil
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints the version of plaza.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(version.String() + "\n"))
			return err
		},
	}
}
