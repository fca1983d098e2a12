package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/audio"
	"github.com/sakif/nexusmena/internal/gateway"
	"github.com/sakif/nexusmena/internal/identity"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/portal"
)

// =========================================================================
// FAKE GENERATOR
// =========================================================================

// scriptedGenerator answers text requests with text and speech requests
// with pcm. If gate is set, the first request blocks on it after signalling
// started.
type scriptedGenerator struct {
	text      string
	pcm       []byte
	speechErr error

	gate    chan struct{}
	started chan struct{}

	mu      sync.Mutex
	prompts []string
}

func (g *scriptedGenerator) GenerateContent(_ context.Context, _ string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, contents[len(contents)-1].Parts[0].Text)
	first := len(g.prompts) == 1
	g.mu.Unlock()

	if first && g.gate != nil {
		close(g.started)
		<-g.gate
	}

	part := &genai.Part{Text: g.text}
	if cfg != nil && len(cfg.ResponseModalities) > 0 {
		if g.speechErr != nil {
			return nil, g.speechErr
		}
		part = &genai.Part{InlineData: &genai.Blob{MIMEType: "audio/pcm", Data: g.pcm}}
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: []*genai.Part{part}}}},
	}, nil
}

func (g *scriptedGenerator) prompt(i int) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[i]
}

func newTestAssistant(t *testing.T, gen gateway.Generator) (*AssistantService, *portal.State) {
	t.Helper()
	st, _ := newTestPortal(t, gen)
	return NewAssistantService(st, testLogger()), st
}

// =========================================================================
// Text operations
// =========================================================================

func TestSummarize(t *testing.T) {
	gen := &scriptedGenerator{text: "- one\n- two\n- three"}
	svc, _ := newTestAssistant(t, gen)

	got, err := svc.Summarize(context.Background(), "long article", "AR")
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "- one\n- two\n- three"}, got)
	assert.Contains(t, gen.prompt(0), "باللغة العربية", "upper-case language code still selects Arabic")
}

func TestSummarize_Validation(t *testing.T) {
	svc, _ := newTestAssistant(t, nil)

	_, err := svc.Summarize(context.Background(), "   ", model.LanguageEnglish)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Translate(context.Background(), strings.Repeat("a", maxPromptRunes+1), model.LanguageArabic)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestWithoutCredential_ReturnsFallbacks(t *testing.T) {
	svc, _ := newTestAssistant(t, nil)
	ctx := context.Background()

	sum, err := svc.Summarize(ctx, "text", model.LanguageEnglish)
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: gateway.SummaryMissingKey, Fallback: true}, sum)

	tr, err := svc.Translate(ctx, "hello", model.LanguageArabic)
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "hello", Fallback: true}, tr)

	assert.Equal(t, Reply{Text: gateway.MarketMissingKey, Fallback: true}, svc.MarketInsight(ctx))

	sp, err := svc.Speak(ctx, "hello")
	require.NoError(t, err)
	assert.True(t, sp.Fallback)
	assert.Equal(t, audio.SynthesisNotice, sp.Notice)
	assert.True(t, sp.Buffer.Empty())

	turn, err := svc.Chat(ctx, "u1", "chat", nil, "hi", "")
	require.NoError(t, err)
	assert.True(t, turn.Fallback)
	assert.Equal(t, gateway.ChatMissingKey, turn.Message.Content)
	assert.Equal(t, model.RoleAssistant, turn.Message.Role)
}

func TestMarketInsight_UsesCurrentSnapshot(t *testing.T) {
	gen := &scriptedGenerator{text: "Markets are up."}
	svc, _ := newTestAssistant(t, gen)

	got := svc.MarketInsight(context.Background())
	assert.Equal(t, "Markets are up.", got.Text)
	assert.Contains(t, gen.prompt(0), "EGX 30")
}

// =========================================================================
// Speech
// =========================================================================

func TestSpeak_DecodesPCM(t *testing.T) {
	pcm := make([]byte, 4800) // 2400 samples, 100 ms
	gen := &scriptedGenerator{pcm: pcm}
	svc, _ := newTestAssistant(t, gen)

	sp, err := svc.Speak(context.Background(), "hello")
	require.NoError(t, err)
	assert.False(t, sp.Fallback)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pcm), sp.Base64)
	assert.Equal(t, 2400, sp.Buffer.Len())
	assert.Equal(t, audio.SampleRate, sp.Buffer.SampleRate)
}

// =========================================================================
// Chat
// =========================================================================

func TestChat_PassesHistoryAndContext(t *testing.T) {
	gen := &scriptedGenerator{text: "Fawry is a payments company."}
	svc, _ := newTestAssistant(t, gen)

	history := []model.ChatMessage{{Role: model.RoleUser, Content: "hi"}, {Role: model.RoleAssistant, Content: "hello"}}
	turn, err := svc.Chat(context.Background(), "u1", "chat", history, "What is Fawry?", "Startups page")
	require.NoError(t, err)
	assert.False(t, turn.Superseded)
	assert.Equal(t, "Fawry is a payments company.", turn.Message.Content)
	assert.NotEmpty(t, turn.Message.ID)
	assert.Contains(t, gen.prompt(0), "[Context from current page: Startups page]")

	_, err = svc.Chat(context.Background(), "u1", "chat", []model.ChatMessage{{Role: "tool"}}, "x", "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestChat_NewerMessageSupersedes(t *testing.T) {
	gen := &scriptedGenerator{text: "answer", gate: make(chan struct{}), started: make(chan struct{})}
	svc, _ := newTestAssistant(t, gen)
	ctx := context.Background()

	type result struct {
		turn *ChatTurn
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		turn, err := svc.Chat(ctx, "u1", "chat", nil, "first", "")
		slow <- result{turn, err}
	}()
	<-gen.started

	fast, err := svc.Chat(ctx, "u1", "chat", nil, "second", "")
	require.NoError(t, err)
	assert.False(t, fast.Superseded)

	close(gen.gate)
	r := <-slow
	require.NoError(t, r.err)
	assert.True(t, r.turn.Superseded, "the first answer arrived after a newer message")
}

func TestChat_SignOutSupersedes(t *testing.T) {
	gen := &scriptedGenerator{text: "answer", gate: make(chan struct{}), started: make(chan struct{})}
	svc, st := newTestAssistant(t, gen)
	ctx := context.Background()

	done := make(chan *ChatTurn, 1)
	go func() {
		turn, _ := svc.Chat(ctx, "u1", "chat", nil, "first", "")
		done <- turn
	}()
	<-gen.started

	require.NoError(t, st.Hub.Publish(ctx, identity.SignedOut{UserID: "u1"}))
	close(gen.gate)
	assert.True(t, (<-done).Superseded)
}

// =========================================================================
// Podcast summaries
// =========================================================================

func TestPodcastSummary_Text(t *testing.T) {
	gen := &scriptedGenerator{text: "- entrepreneurs"}
	svc, _ := newTestAssistant(t, gen)

	got, err := svc.PodcastSummary(context.Background(), "u1", "p1", model.LanguageArabic, false)
	require.NoError(t, err)
	assert.Equal(t, "- entrepreneurs", got.Text)
	assert.Nil(t, got.Speech)

	prompt := gen.prompt(0)
	assert.Contains(t, prompt, "Podcast Title: سوالف بيزنس\n")
	assert.Contains(t, prompt, "Topic: Entrepreneurship")
}

func TestPodcastSummary_AudioSpeaksSummary(t *testing.T) {
	gen := &scriptedGenerator{text: "short summary", pcm: make([]byte, 480)}
	svc, _ := newTestAssistant(t, gen)

	got, err := svc.PodcastSummary(context.Background(), "u1", "p2", model.LanguageEnglish, true)
	require.NoError(t, err)
	require.NotNil(t, got.Speech)
	assert.False(t, got.Speech.Fallback)
	assert.Equal(t, 240, got.Speech.Buffer.Len())
	assert.Equal(t, "short summary", gen.prompt(1), "speech reads the summary, not the description")
}

func TestPodcastSummary_AudioFailure(t *testing.T) {
	gen := &scriptedGenerator{text: "short summary", speechErr: errors.New("quota")}
	svc, _ := newTestAssistant(t, gen)

	got, err := svc.PodcastSummary(context.Background(), "u1", "p2", model.LanguageEnglish, true)
	require.NoError(t, err)
	assert.Equal(t, "short summary", got.Text)
	require.NotNil(t, got.Speech)
	assert.Equal(t, audio.SynthesisNotice, got.Speech.Notice)
}

func TestPodcastSummary_UnknownEpisode(t *testing.T) {
	svc, _ := newTestAssistant(t, nil)

	_, err := svc.PodcastSummary(context.Background(), "u1", "e1", model.LanguageEnglish, false)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "an event id is not a podcast")
}
