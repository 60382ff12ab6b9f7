// Package sdk is the public surface of the Regis streaming core.
//
// A Client routes chat turns to one of two providers, supervises every
// stream with total and inactivity timeouts, falls back to the other
// provider when the active one fails, and owns at most one live voice
// session.
//
// # Quick Start
//
//	cfg, err := config.Load("regis.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := sdk.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.SendMessageStream(ctx, "Hello!", providers.Callbacks{
//	    OnToken: func(t string) { fmt.Print(t) },
//	})
//
// # Providers
//
// Claude is reached through the backend proxy, which holds its key. Gemini is
// called directly with the configured API key. [Client.SetModel] picks the
// provider from the model prefix; [Client.SetProvider] switches explicitly and
// clears both conversations.
//
// # Fallback
//
// When the active provider fails for any reason other than missing
// configuration, the message is retried on the other provider if it is
// available. If both fail the returned error is a [*FallbackError] carrying
// both causes.
//
// # Live Mode
//
// [Client.ConnectLiveSession] captures microphone audio, streams it to the
// Gemini live endpoint and plays the spoken reply. The microphone and the
// playback device are supplied with [WithMicrophone] and [WithAudioOutput].
//
// # Logs
//
// Every log record is mirrored into a bounded in-memory sink readable with
// [Client.Logs], so a front end can show recent activity.
package sdk
