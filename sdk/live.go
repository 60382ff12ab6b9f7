package sdk

import (
	"context"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/live"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
)

// ConnectLiveSession opens a full-duplex voice session with the Gemini live
// endpoint. Only one session is kept: a previous session is closed first.
//
// onAudio receives every inbound base64 PCM16 frame. onClose runs once when
// the server or the transport ends an open session; it does not run after
// Close, DisconnectLive or cancellation of ctx.
func (c *Client) ConnectLiveSession(
	ctx context.Context, onAudio func(base64Audio string), onClose func(),
) (*live.Session, error) {
	sess := live.New(c.liveConfig(), onAudio, onClose)

	c.liveMu.Lock()
	if c.isClosed() {
		c.liveMu.Unlock()
		return nil, ErrClientClosed
	}
	prev := c.liveSession
	c.liveSession = sess
	c.liveMu.Unlock()

	if prev != nil {
		logger.InfoContext(ctx, "closing previous live session", "session_id", prev.ID())
		if err := prev.Close(); err != nil {
			logger.WarnContext(ctx, "failed to close previous live session", "error", err)
		}
	}

	if err := sess.Start(ctx); err != nil {
		c.liveMu.Lock()
		if c.liveSession == sess {
			c.liveSession = nil
		}
		c.liveMu.Unlock()
		return nil, err
	}
	return sess, nil
}

// LiveSession returns the current live session, or nil.
func (c *Client) LiveSession() *live.Session {
	c.liveMu.Lock()
	defer c.liveMu.Unlock()
	return c.liveSession
}

// DisconnectLive closes the current live session, if any.
func (c *Client) DisconnectLive() error {
	c.liveMu.Lock()
	sess := c.liveSession
	c.liveSession = nil
	c.liveMu.Unlock()

	if sess == nil {
		return nil
	}
	return sess.Close()
}

func (c *Client) liveConfig() live.Config {
	return live.Config{
		URL:           c.cfg.Live.URL,
		APIKey:        c.cfg.Gemini.APIKey,
		Model:         c.cfg.Live.Model,
		Voice:         c.cfg.Live.Voice,
		CaptureRate:   c.cfg.Live.CaptureRate,
		BlockSize:     c.cfg.Live.BlockSize,
		OutputRate:    c.cfg.Live.OutputRate,
		Microphone:    c.opts.microphone,
		OutputFactory: c.opts.output,
		Dialer:        c.opts.dialer,
	}
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
