package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/audio"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/live"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/sdk"
)

// audioDevices supplies the microphone and speaker for live mode.
type audioDevices interface {
	Microphone() live.Microphone
	Output(sampleRate int) (audio.OutputContext, error)
	Close() error
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Talk to Gemini through the microphone and speaker",
	Long: `Opens a full-duplex voice session. Microphone audio streams to the Gemini live
endpoint and the spoken reply plays on the default output device until Ctrl-C.

Requires a Gemini API key and a binary built with -tags portaudio.`,
	RunE: runLive,
}

func init() {
	rootCmd.AddCommand(liveCmd)
}

func runLive(cmd *cobra.Command, _ []string) error {
	devices, err := openAudioDevices()
	if err != nil {
		return err
	}
	defer devices.Close()

	a, err := setupApp(cmd.Context(),
		sdk.WithMicrophone(devices.Microphone()),
		sdk.WithAudioOutput(devices.Output),
	)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ended := make(chan struct{})
	var endOnce sync.Once
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, dimStyle.Render("connecting..."))
	sess, err := a.client.ConnectLiveSession(ctx, nil, func() {
		endOnce.Do(func() { close(ended) })
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(out, successStyle.Render("live session open, speak now (Ctrl-C to stop)"))

	select {
	case <-ctx.Done():
	case <-ended:
		fmt.Fprintln(out, warningStyle.Render("session ended by the server"))
	}
	if err := a.client.DisconnectLive(); err != nil {
		return err
	}

	stats := sess.Stats()
	fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("sent %d blocks, dropped %d, received %d frames",
		stats.Sent, stats.Dropped, stats.Received)))
	return nil
}
