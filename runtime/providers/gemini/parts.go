package gemini

import (
	"context"
	"encoding/base64"
	"strings"

	"google.golang.org/genai"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
)

// buildParts assembles the message: a leading text part, then one inline part
// per valid attachment. Invalid attachments are dropped with a warning.
func buildParts(ctx context.Context, req *providers.Request) []genai.Part {
	text := req.Message
	if strings.TrimSpace(text) == "" {
		text = " "
	}
	parts := make([]genai.Part, 0, 1+len(req.Attachments))
	parts = append(parts, genai.Part{Text: text})

	for i, att := range req.Attachments {
		data, reason := decodeAttachment(att)
		if reason != "" {
			logger.WarnContext(ctx, "invalid attachment, skipping",
				"index", i, "type", att.Type, "mime_type", att.MIMEType, "reason", reason)
			continue
		}
		parts = append(parts, genai.Part{InlineData: &genai.Blob{MIMEType: att.MIMEType, Data: data}})
	}
	return parts
}

func decodeAttachment(att providers.Attachment) ([]byte, string) {
	if att.MIMEType == "" {
		return nil, "missing mime type"
	}
	if att.Data == "" {
		return nil, "missing data"
	}
	data, err := base64.StdEncoding.DecodeString(att.Data)
	if err != nil {
		return nil, "data is not base64"
	}
	return data, ""
}
