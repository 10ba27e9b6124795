// Package cli defines the dictation command tree.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Car-Role/Whisper-dictation/internal/config"
	"github.com/Car-Role/Whisper-dictation/internal/logging"
)

// Version is stamped at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

type options struct {
	configPath string
	flags      *config.FlagValues
	lookup     func(string) (string, bool)
}

// NewRootCmd builds the command tree. Without a subcommand it runs the
// dictation daemon.
func NewRootCmd() *cobra.Command {
	opts := &options{lookup: os.LookupEnv}

	root := &cobra.Command{
		Use:          "dictation",
		Short:        "Hold a hotkey, speak, release: the transcript is typed for you",
		Long:         "Push-to-talk dictation. Hold the hotkey (Ctrl+Shift+D by default) to record from the microphone; on release the audio is transcribed with Whisper and typed into the focused window.",
		SilenceUsage: true,
		Version:      Version,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, opts)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (.json, .yaml or .toml)")
	opts.flags = config.BindFlags(pf)

	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newTranscribeCmd(opts))
	root.AddCommand(newInitConfigCmd(opts))
	root.AddCommand(newDevicesCmd())
	return root
}

// load resolves the configuration and the logger for cmd.
func (o *options) load(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	cfg, err := config.Loader{Lookup: o.lookup}.Load(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := config.ApplyFlags(&cfg, cmd.Flags(), o.flags); err != nil {
		return config.Config{}, nil, err
	}
	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}
