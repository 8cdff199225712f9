package command

import (
	"github.com/pictor-io/pictor/internal/command/run"
	"github.com/pictor-io/pictor/internal/logginglevel"
	"github.com/pictor-io/pictor/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

var debug bool

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pictor",
		Short:         "Caching orchestration server for generative image APIs",
		Version:       version.FullVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if debug {
				logginglevel.Level.SetLevel(zapcore.DebugLevel)
			}

			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	cmd.AddCommand(run.NewCommand())

	return cmd
}
