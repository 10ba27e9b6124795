package cli

import (
	"github.com/spf13/cobra"

	"github.com/Car-Role/Whisper-dictation/internal/app"
)

func newTranscribeCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "transcribe FILE",
		Short: "Transcribe an existing audio file",
		Long:  "Transcribe an audio file with the configured engine. WAV is read directly; other formats are converted with ffmpeg. The transcript goes to FILE.txt unless --output is given (use - for stdout).",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			_, err = app.RunFile(cmd.Context(), cfg, app.FileOptions{
				Input:  args[0],
				Output: output,
				Stdout: cmd.OutOrStdout(),
			}, logger)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "transcript path, - for stdout")
	return cmd
}
