package sdk

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/audio"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/config"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/history"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/live"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers/gemini"
)

// options holds the collaborators of a Client.
// It is populated by Option functions passed to New.
type options struct {
	httpClient     *http.Client
	store          history.Store
	sink           *logger.Sink
	geminiFactory  gemini.SessionFactory
	tracerProvider trace.TracerProvider
	remote         *config.RemoteConfig

	// Live mode collaborators
	microphone live.Microphone
	output     audio.OutputFactory
	dialer     live.Dialer
}

// Option configures a Client.
type Option func(*options) error

// WithHTTPClient sets the client used for backend calls and the Gemini SDK.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) error {
		if client == nil {
			return errors.New("http client must not be nil")
		}
		o.httpClient = client
		return nil
	}
}

// WithHistoryStore persists conversations in store instead of the store
// derived from the history configuration.
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	client, _ := sdk.New(cfg, sdk.WithHistoryStore(history.NewRedisStore(rdb)))
func WithHistoryStore(store history.Store) Option {
	return func(o *options) error {
		o.store = store
		return nil
	}
}

// WithLogSink mirrors log records into sink. Without it the client installs
// a sink sized from the logging configuration.
func WithLogSink(sink *logger.Sink) Option {
	return func(o *options) error {
		o.sink = sink
		return nil
	}
}

// WithGeminiSessionFactory replaces the genai-backed chat session factory.
// The Gemini provider counts as available when a factory is set.
func WithGeminiSessionFactory(factory gemini.SessionFactory) Option {
	return func(o *options) error {
		o.geminiFactory = factory
		return nil
	}
}

// WithTracerProvider sets the tracer provider for stream spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		o.tracerProvider = tp
		return nil
	}
}

// WithRemoteConfig applies the key availability reported by the backend's
// /api/config endpoint. Without it the backend is assumed to hold a Claude key.
func WithRemoteConfig(remote *config.RemoteConfig) Option {
	return func(o *options) error {
		o.remote = remote
		return nil
	}
}

// WithMicrophone sets the capture device used by live sessions.
func WithMicrophone(mic live.Microphone) Option {
	return func(o *options) error {
		o.microphone = mic
		return nil
	}
}

// WithAudioOutput sets the playback context factory used by live sessions.
// Without it inbound live audio is only handed to the onAudio callback.
func WithAudioOutput(factory audio.OutputFactory) Option {
	return func(o *options) error {
		o.output = factory
		return nil
	}
}

// WithLiveDialer replaces the WebSocket dialer used by live sessions.
func WithLiveDialer(dialer live.Dialer) Option {
	return func(o *options) error {
		o.dialer = dialer
		return nil
	}
}
