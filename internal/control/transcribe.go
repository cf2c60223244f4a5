package control

import (
	"fmt"

	"holdtalk/internal/asr"
	"holdtalk/internal/audio"
	"holdtalk/internal/config"
	"holdtalk/internal/logging"
	"holdtalk/internal/output"

	"github.com/spf13/cobra"
)

// NewTranscribeCmd transcribes a WAV file with the configured model and
// optionally delivers the text through the configured output.
func NewTranscribeCmd(cfgPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <wavfile>",
		Short: "Transcribe a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			logger, err := logging.Configure(cfg)
			if err != nil {
				return err
			}
			samples, err := audio.ReadWAV(args[0])
			if err != nil {
				return err
			}
			if cfg.Audio.TrimSilence {
				if samples, err = audio.TrimSilence(samples, cfg.Audio.FrameMS, cfg.Audio.VADAggressiveness); err != nil {
					return err
				}
			}
			if len(samples) == 0 {
				return asr.ErrEmptyAudio
			}
			model, _ := cmd.Flags().GetString("model")
			if model == "" {
				model = cfg.ASR.Model
			}
			txt, err := asr.NewEngine(cfg, logger).TranscribeFile(cmd.Context(), model, samples)
			if err != nil {
				return err
			}
			if txt == "" {
				return asr.ErrEmptyResult
			}
			fmt.Fprintln(cmd.OutOrStdout(), txt)

			if emit, _ := cmd.Flags().GetBool("output"); emit {
				out, err := output.New(cfg, logger)
				if err != nil {
					return err
				}
				return out.Emit(cmd.Context(), txt)
			}
			return nil
		},
	}
	cmd.Flags().String("model", "", "model name or path (default: asr.model)")
	cmd.Flags().Bool("output", false, "also send the text through the configured output")
	return cmd
}
