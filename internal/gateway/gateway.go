// Package gateway wraps the hosted generative model behind five stateless
// operations: summarize, translate, analyze market data, synthesize speech
// and continue a chat.
//
// FAILURE MODEL:
// A gateway call never returns a bare error. It returns an Outcome carrying
// either the model's answer or a typed error plus the user-facing fallback
// for that operation (see prompts.go). Without an API key the gateway still
// works: every call immediately yields ErrMissingCredential and its fallback,
// so the rest of the portal keeps running.
//
// The gateway adds no timeout and no retries. Callers bound a call with the
// context they pass in.
package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/nexusmena/internal/model"
	"google.golang.org/genai"
)

const (
	DefaultTextModel   = "gemini-2.5-flash"
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
	DefaultVoice       = "Kore"
)

// Generator is the slice of the genai client the gateway needs.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config selects models and the speech voice.
type Config struct {
	APIKey      string
	TextModel   string
	SpeechModel string
	Voice       string
}

func (c *Config) applyDefaults() {
	if c.TextModel == "" {
		c.TextModel = DefaultTextModel
	}
	if c.SpeechModel == "" {
		c.SpeechModel = DefaultSpeechModel
	}
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
}

// Gateway is safe for concurrent use.
type Gateway struct {
	gen    Generator // nil when no credential is configured
	cfg    Config
	cache  Cache
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCache enables response caching for Summarize and Translate.
func WithCache(c Cache) Option {
	return func(g *Gateway) { g.cache = c }
}

// New creates a gateway backed by the Gemini API.
// An empty cfg.APIKey is not an error: the gateway runs in fallback mode.
func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	cfg.applyDefaults()
	if cfg.APIKey == "" {
		logger.Warn("AI API key not configured; gateway will return fallbacks")
		return newGateway(nil, cfg, logger, opts), nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: creating genai client: %w", err)
	}
	return newGateway(client.Models, cfg, logger, opts), nil
}

// NewWithGenerator creates a gateway around any Generator (tests, proxies).
// A nil gen behaves like a missing credential.
func NewWithGenerator(gen Generator, cfg Config, logger *slog.Logger, opts ...Option) *Gateway {
	cfg.applyDefaults()
	return newGateway(gen, cfg, logger, opts)
}

func newGateway(gen Generator, cfg Config, logger *slog.Logger, opts []Option) *Gateway {
	g := &Gateway{gen: gen, cfg: cfg, logger: logger}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Available reports whether a credential is configured.
func (g *Gateway) Available() bool {
	return g.gen != nil
}

// ============================================================
// Text operations
// ============================================================

// Summarize condenses text into three bullet points in lang.
func (g *Gateway) Summarize(ctx context.Context, text string, lang model.Language) Outcome[string] {
	if g.gen == nil {
		return fail(ErrMissingCredential, SummaryMissingKey)
	}
	key := cacheKey("summarize", string(lang), text)
	if v, ok := g.cached(ctx, key); ok {
		return succeed(v)
	}

	out, err := g.generateText(ctx, []*genai.Content{userText(summaryPrompt(text, lang))}, nil)
	switch {
	case err == nil:
		g.store(ctx, key, out)
		return succeed(out)
	case isEmpty(err):
		return fail(err, SummaryEmpty)
	default:
		g.logger.Error("summary failed", "error", err)
		return fail(err, SummaryError)
	}
}

// Translate renders text in target, keeping technical terms. On any failure
// the fallback is the untranslated text.
func (g *Gateway) Translate(ctx context.Context, text string, target model.Language) Outcome[string] {
	if g.gen == nil {
		return fail(ErrMissingCredential, text)
	}
	key := cacheKey("translate", string(target), text)
	if v, ok := g.cached(ctx, key); ok {
		return succeed(v)
	}

	out, err := g.generateText(ctx, []*genai.Content{userText(translatePrompt(text, target))}, nil)
	if err != nil {
		if !isEmpty(err) {
			g.logger.Error("translation failed", "error", err)
		}
		return fail(err, text)
	}
	g.store(ctx, key, out)
	return succeed(out)
}

// AnalyzeMarket asks for two sentences of commentary on a snapshot rendered
// as text (see market.Describe).
func (g *Gateway) AnalyzeMarket(ctx context.Context, snapshot string) Outcome[string] {
	if g.gen == nil {
		return fail(ErrMissingCredential, MarketMissingKey)
	}
	out, err := g.generateText(ctx, []*genai.Content{userText(marketPrompt(snapshot))}, nil)
	switch {
	case err == nil:
		return succeed(out)
	case isEmpty(err):
		return fail(err, MarketEmpty)
	default:
		g.logger.Error("market analysis failed", "error", err)
		return fail(err, MarketError)
	}
}

// ContinueChat sends message as the next user turn after history, with the
// assistant persona as system instruction. A non-empty pageContext is
// prepended to the message.
func (g *Gateway) ContinueChat(ctx context.Context, history []model.ChatMessage, message, pageContext string) Outcome[string] {
	if g.gen == nil {
		return fail(ErrMissingCredential, ChatMissingKey)
	}

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, &genai.Content{
			Role:  providerRole(m.Role),
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	contents = append(contents, userText(withPageContext(message, pageContext)))

	out, err := g.generateText(ctx, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: assistantInstruction}}},
	})
	if err != nil {
		g.logger.Error("chat failed", "error", err, "turns", len(history))
		return fail(err, ChatError)
	}
	return succeed(out)
}

// ============================================================
// Speech
// ============================================================

// SynthesizeSpeech returns base64 raw PCM (s16le, 24 kHz, mono) read aloud
// by the configured voice. On failure the fallback is "" (no audio).
func (g *Gateway) SynthesizeSpeech(ctx context.Context, text string) Outcome[string] {
	if g.gen == nil {
		return fail(ErrMissingCredential, "")
	}

	resp, err := g.gen.GenerateContent(ctx, g.cfg.SpeechModel, []*genai.Content{userText(text)}, &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.cfg.Voice},
			},
		},
	})
	if err != nil {
		g.logger.Error("speech synthesis failed", "error", err)
		return fail(fmt.Errorf("%w: %w", ErrProvider, err), "")
	}

	for _, p := range firstParts(resp) {
		if p.InlineData != nil && len(p.InlineData.Data) > 0 {
			return succeed(base64.StdEncoding.EncodeToString(p.InlineData.Data))
		}
	}
	return fail(ErrEmptyResponse, "")
}

// ============================================================
// Helpers
// ============================================================

func (g *Gateway) generateText(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.gen.GenerateContent(ctx, g.cfg.TextModel, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvider, err)
	}
	var b strings.Builder
	for _, p := range firstParts(resp) {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// firstParts returns the parts of the first candidate, or nil.
func firstParts(resp *genai.GenerateContentResponse) []*genai.Part {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return nil
	}
	return c.Content.Parts
}

func userText(s string) *genai.Content {
	return &genai.Content{Role: "user", Parts: []*genai.Part{{Text: s}}}
}

// providerRole maps transcript roles onto the provider's "user"/"model".
func providerRole(r model.Role) string {
	if r == model.RoleAssistant {
		return "model"
	}
	return "user"
}

func isEmpty(err error) bool {
	return errors.Is(err, ErrEmptyResponse)
}
