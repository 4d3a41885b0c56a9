package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ent0n29/aerocopilot/internal/speech"
)

var (
	speakProvider string
	speakDryRun   bool

	speakCmd = &cobra.Command{
		Use:   "speak [TEXT|-]",
		Short: "Read advisory text aloud",
		Long:  "Read advisory text aloud. Markdown is cleaned first; pass - to read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSpeak,
	}
)

func init() {
	speakCmd.Flags().StringVarP(&speakProvider, "provider", "p", "", "local or elevenlabs (default from TTS_PROVIDER)")
	speakCmd.Flags().BoolVar(&speakDryRun, "dry-run", false, "print the cleaned text and delivery without speaking")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	text, err := speakInput(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	var opts []speech.SpeakOption
	if speakProvider != "" {
		p, err := speech.ParseProvider(speakProvider)
		if err != nil {
			return fmt.Errorf("--provider %q: %w", speakProvider, err)
		}
		opts = append(opts, speech.WithProvider(p))
	}

	if speakDryRun {
		cleaned := speech.CleanText(text)
		urgent := speech.IsUrgent(cleaned)
		d := speech.DeliveryFor(urgent)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "urgent:   %t\n", urgent)
		fmt.Fprintf(out, "delivery: rate=%.2f pitch=%.2f volume=%.2f\n", d.Rate, d.Pitch, d.Volume)
		for _, s := range speech.SplitSentences(cleaned) {
			fmt.Fprintln(out, s)
		}
		return nil
	}

	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer closer.Close()

	voice, err := newSpeechManager(cfg, logger, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		voice.Stop()
	}()

	err = voice.Speak(ctx, text, opts...)
	if errors.Is(err, speech.ErrInterrupted) {
		return nil
	}
	return err
}

func speakInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.New("nothing to speak")
	}
	return string(data), nil
}
