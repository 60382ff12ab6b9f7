//go:build !portaudio

package main

import "errors"

func openAudioDevices() (audioDevices, error) {
	return nil, errors.New("live mode requires a build with -tags portaudio")
}
