//go:build portaudio

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/audio"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/live"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
)

const (
	// outputFramesPerBuffer is 40ms of audio at 24kHz
	outputFramesPerBuffer = 960
	// captureBacklog is the number of blocks buffered ahead of the sender
	captureBacklog = 8
	readRetryDelay = 10 * time.Millisecond
)

// portAudio drives the default input and output devices.
type portAudio struct{}

func openAudioDevices() (audioDevices, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return portAudio{}, nil
}

func (portAudio) Close() error {
	return portaudio.Terminate()
}

func (portAudio) Microphone() live.Microphone {
	return portAudioMic{}
}

// Output opens a mono output stream whose callback pulls from a timeline.
// Closing the timeline stops the stream.
func (portAudio) Output(sampleRate int) (audio.OutputContext, error) {
	timeline := audio.NewTimelineContext(sampleRate)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), outputFramesPerBuffer,
		func(out []float32) { timeline.Render(out) })
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}
	timeline.OnClose(func() {
		if err := stream.Stop(); err != nil {
			logger.Warn("failed to stop output stream", "error", err)
		}
		if err := stream.Close(); err != nil {
			logger.Warn("failed to close output stream", "error", err)
		}
	})
	return timeline, nil
}

type portAudioMic struct{}

// Open starts a blocking-read input stream delivering blockSize samples per block.
func (portAudioMic) Open(_ context.Context, sampleRate, blockSize int) (live.Capture, error) {
	in := make([]float32, blockSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), blockSize, in)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	c := &portAudioCapture{
		stream: stream,
		blocks: make(chan []float32, captureBacklog),
		done:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.readLoop(in)
	return c, nil
}

type portAudioCapture struct {
	stream    *portaudio.Stream
	blocks    chan []float32
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	dropped   uint64
}

func (c *portAudioCapture) Blocks() <-chan []float32 {
	return c.blocks
}

func (c *portAudioCapture) readLoop(in []float32) {
	defer c.wg.Done()
	defer close(c.blocks)

	for {
		select {
		case <-c.done:
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			logger.Debug("microphone read failed", "error", err)
			time.Sleep(readRetryDelay)
			continue
		}

		block := make([]float32, len(in))
		copy(block, in)
		select {
		case c.blocks <- block:
		case <-c.done:
			return
		default:
			c.dropped++
		}
	}
}

// Close stops the stream and waits for the read loop to exit.
func (c *portAudioCapture) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.stream.Stop()
		c.wg.Wait()
		if closeErr := c.stream.Close(); err == nil {
			err = closeErr
		}
		if c.dropped > 0 {
			logger.Info("microphone blocks dropped", "count", c.dropped)
		}
	})
	return err
}
