package gemini

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/logger"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/providers"
	"github.com/pawelserkowski-lang/Regis-AIStudio-sub000/runtime/types"
)

// streamOutcome separates the three ways an iteration can end.
type streamOutcome struct {
	text        string
	iterErr     error
	blockReason string
}

// Stream implements providers.Provider.
//
// An iteration error after text was received completes with the partial text.
// An error before any text is a failure, and so is a clean end with no text.
func (p *Provider) Stream(ctx context.Context, req *providers.Request, cb providers.Callbacks) {
	p.turnMu.Lock()
	defer p.turnMu.Unlock()

	session, model, err := p.chatSession(ctx, req.Model)
	ctx = logger.WithLoggingContext(ctx, &logger.LoggingFields{
		Provider: string(providers.ProviderGemini),
		Model:    model,
	})
	p.window.Append(types.NewUserMessage(req.Message))
	if err != nil {
		p.fail(ctx, classifyError(err), cb)
		return
	}

	parts := buildParts(ctx, req)
	logger.DebugContext(ctx, "sending chat turn", "chars", len(req.Message), "parts", len(parts))

	out := iterate(ctx, session, parts, cb)

	switch {
	case out.iterErr != nil && out.text != "" && ctx.Err() == nil:
		logger.WarnContext(ctx, "stream interrupted, completing with partial response",
			"chars", len(out.text), "error", logger.RedactSensitiveData(out.iterErr.Error()))
		p.finish(ctx, out.text, cb)
	case out.iterErr != nil:
		err := out.iterErr
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = classifyError(err)
		}
		p.fail(ctx, err, cb)
	case out.blockReason != "" && out.text == "":
		p.fail(ctx, providers.SafetyBlocked(providers.ProviderGemini, out.blockReason), cb)
	case out.blockReason != "":
		logger.WarnContext(ctx, "response cut by safety filter, completing with partial response",
			"chars", len(out.text), "reason", out.blockReason)
		p.finish(ctx, out.text, cb)
	case out.text == "":
		p.fail(ctx, providers.EmptyResponse(providers.ProviderGemini), cb)
	default:
		p.finish(ctx, out.text, cb)
	}
}

func iterate(ctx context.Context, session ChatSession, parts []genai.Part, cb providers.Callbacks) streamOutcome {
	var (
		out  streamOutcome
		full strings.Builder
	)
	for resp, err := range session.SendMessageStream(ctx, parts...) {
		if err != nil {
			out.iterErr = err
			break
		}
		cb.Activity()
		if reason := blockReason(resp); reason != "" {
			out.blockReason = reason
			break
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		full.WriteString(text)
		cb.Token(text)
	}
	out.text = full.String()
	return out
}

func (p *Provider) finish(ctx context.Context, text string, cb providers.Callbacks) {
	p.window.Append(types.NewAssistantMessage(text))
	p.window.Truncate()
	p.persist(ctx)
	logger.DebugContext(ctx, "response assembled", "chars", len(text))
	cb.Complete(text)
}

func (p *Provider) fail(ctx context.Context, err error, cb providers.Callbacks) {
	p.persist(ctx)
	logger.DebugContext(ctx, "chat turn failed", "error", err)
	cb.Fail(err)
}

// blockReason reports why a chunk was refused, or "" when it was not.
func blockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" &&
		fb.BlockReason != genai.BlockedReasonUnspecified {
		return string(fb.BlockReason)
	}
	for _, c := range resp.Candidates {
		if c != nil && (c.FinishReason == genai.FinishReasonSafety || c.FinishReason == genai.FinishReasonProhibitedContent) {
			return string(c.FinishReason)
		}
	}
	return ""
}
