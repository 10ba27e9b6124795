package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Car-Role/Whisper-dictation/internal/config"
)

func newInitConfigCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [PATH]",
		Short: "Write a config file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.configPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = config.DefaultPath()
			}
			if err := config.SaveDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
}
