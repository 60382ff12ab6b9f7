package live

import (
	"fmt"
)

// Response modality requested from the endpoint.
const modalityAudio = "AUDIO"

type setupMessage struct {
	Setup setupBody `json:"setup"`
}

type setupBody struct {
	Model             string           `json:"model"`
	GenerationConfig  generationConfig `json:"generationConfig"`
	SystemInstruction *contentPayload  `json:"systemInstruction,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type prebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type contentPayload struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type realtimeInputMessage struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// serverMessage is the subset of server frames the session acts on.
type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	GoAway        *goAway        `json:"goAway,omitempty"`
}

type serverContent struct {
	ModelTurn    *modelTurn `json:"modelTurn,omitempty"`
	TurnComplete bool       `json:"turnComplete,omitempty"`
	Interrupted  bool       `json:"interrupted,omitempty"`
}

type modelTurn struct {
	Parts []serverPart `json:"parts"`
}

type serverPart struct {
	InlineData *inlineData `json:"inlineData,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type goAway struct {
	TimeLeft string `json:"timeLeft,omitempty"`
}

func newSetupMessage(cfg *Config) setupMessage {
	msg := setupMessage{Setup: setupBody{
		Model: cfg.modelName(),
		GenerationConfig: generationConfig{
			ResponseModalities: []string{modalityAudio},
			SpeechConfig: speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoiceConfig{VoiceName: cfg.Voice},
				},
			},
		},
	}}
	if cfg.SystemPrompt != "" {
		msg.Setup.SystemInstruction = &contentPayload{Parts: []textPart{{Text: cfg.SystemPrompt}}}
	}
	return msg
}

// captureMIMEType is the outbound audio mime type for a capture rate.
func captureMIMEType(rate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", rate)
}

func newAudioMessage(mimeType, data string) realtimeInputMessage {
	return realtimeInputMessage{RealtimeInput: realtimeInput{
		MediaChunks: []mediaChunk{{MIMEType: mimeType, Data: data}},
	}}
}

// audioFrames returns the base64 audio payloads carried by msg.
func (m *serverMessage) audioFrames() []string {
	if m.ServerContent == nil || m.ServerContent.ModelTurn == nil {
		return nil
	}
	var frames []string
	for _, part := range m.ServerContent.ModelTurn.Parts {
		if part.InlineData != nil && part.InlineData.Data != "" {
			frames = append(frames, part.InlineData.Data)
		}
	}
	return frames
}
