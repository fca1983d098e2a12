package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/audio"
	"github.com/sakif/nexusmena/internal/content"
	"github.com/sakif/nexusmena/internal/gateway"
	"github.com/sakif/nexusmena/internal/market"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/portal"
)

// maxPromptRunes bounds any text the clients can send to the model.
const maxPromptRunes = 20000

// Reply is a gateway answer at the presentation boundary. Text is already
// the fallback when Fallback is true.
type Reply struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

func replyOf(o gateway.Outcome[string]) Reply {
	return Reply{Text: o.Get(), Fallback: !o.OK()}
}

// Speech is synthesized audio. Base64 is the provider payload; Buffer is
// the decoded samples. Both are empty on failure and Notice says why.
type Speech struct {
	Base64   string       `json:"audio"`
	Buffer   audio.Buffer `json:"-"`
	Fallback bool         `json:"fallback"`
	Notice   string       `json:"notice,omitempty"`
}

// ChatTurn is the assistant's answer to one chat message. Superseded means
// a newer message (or a sign-out) arrived while this one was in flight; the
// caller must drop it.
type ChatTurn struct {
	Message    model.ChatMessage `json:"message"`
	Fallback   bool              `json:"fallback"`
	Superseded bool              `json:"superseded,omitempty"`
}

// PodcastSummary is the result of the podcast modal's summary request.
type PodcastSummary struct {
	Reply
	Speech     *Speech `json:"speech,omitempty"`
	Superseded bool    `json:"superseded,omitempty"`
}

// AssistantService exposes the AI features: summaries, translations, market
// insight, speech, chat and podcast summaries.
type AssistantService struct {
	gateway *gateway.Gateway
	tracker *gateway.Tracker
	board   *market.Board
	content *content.Store
	now     func() time.Time
	logger  *slog.Logger
}

func NewAssistantService(st *portal.State, logger *slog.Logger) *AssistantService {
	return &AssistantService{
		gateway: st.Gateway,
		tracker: st.Tracker,
		board:   st.Market,
		content: st.Content,
		now:     time.Now,
		logger:  logger,
	}
}

// Available reports whether answers come from the model or are fallbacks.
func (s *AssistantService) Available() bool {
	return s.gateway.Available()
}

func (s *AssistantService) Summarize(ctx context.Context, text string, lang model.Language) (Reply, error) {
	if err := checkPrompt("text", text); err != nil {
		return Reply{}, err
	}
	return replyOf(s.gateway.Summarize(ctx, text, parseLanguage(lang))), nil
}

func (s *AssistantService) Translate(ctx context.Context, text string, target model.Language) (Reply, error) {
	if err := checkPrompt("text", text); err != nil {
		return Reply{}, err
	}
	return replyOf(s.gateway.Translate(ctx, text, parseLanguage(target))), nil
}

// MarketInsight comments on the current market snapshot.
func (s *AssistantService) MarketInsight(ctx context.Context) Reply {
	snap := s.board.Current()
	return replyOf(s.gateway.AnalyzeMarket(ctx, market.Describe(snap.Metrics)))
}

// Speak reads text aloud.
func (s *AssistantService) Speak(ctx context.Context, text string) (*Speech, error) {
	if err := checkPrompt("text", text); err != nil {
		return nil, err
	}
	return s.speak(ctx, text), nil
}

func (s *AssistantService) speak(ctx context.Context, text string) *Speech {
	out := s.gateway.SynthesizeSpeech(ctx, text)
	buf := audio.Decode(out.Get())
	if !out.OK() || buf.Empty() {
		return &Speech{Fallback: true, Notice: audio.SynthesisNotice}
	}
	return &Speech{Base64: out.Value, Buffer: buf}
}

// Chat answers message after history. Each user has one chat surface per
// name; a new message on the same surface supersedes the one in flight.
func (s *AssistantService) Chat(ctx context.Context, userID, surface string, history []model.ChatMessage, message, pageContext string) (*ChatTurn, error) {
	if err := checkPrompt("message", message); err != nil {
		return nil, err
	}
	for i, m := range history {
		if !m.Role.Valid() {
			return nil, apperror.ValidationFailed("history", fmt.Sprintf("message %d has unknown role %q", i, m.Role))
		}
	}

	key := portal.ChatKey(userID, surface)
	tok := s.tracker.Begin(key)
	defer s.tracker.Finish(key, tok)

	out := s.gateway.ContinueChat(ctx, history, message, pageContext)
	if !s.tracker.Current(key, tok) {
		s.logger.Debug("dropping superseded chat answer", slog.String("key", key))
		return &ChatTurn{Superseded: true}, nil
	}

	return &ChatTurn{
		Message: model.ChatMessage{
			ID:        xid.New().String(),
			Role:      model.RoleAssistant,
			Content:   out.Get(),
			Timestamp: s.now().UTC(),
		},
		Fallback: !out.OK(),
	}, nil
}

// PodcastSummary summarizes a podcast episode from its title, description
// and topic. With withAudio the summary is then read aloud; if that fails
// the speech carries SynthesisNotice and the text summary is still returned.
func (s *AssistantService) PodcastSummary(ctx context.Context, userID, id string, lang model.Language, withAudio bool) (*PodcastSummary, error) {
	item, err := s.content.Get(model.KindPodcast, id)
	if err != nil {
		return nil, err
	}
	lang = parseLanguage(lang)

	key := portal.ChatKey(userID, "podcast")
	tok := s.tracker.Begin(key)
	defer s.tracker.Finish(key, tok)

	summary := replyOf(s.gateway.Summarize(ctx, podcastText(item, lang), lang))
	result := &PodcastSummary{Reply: summary}

	if withAudio {
		if summary.Fallback {
			result.Speech = &Speech{Fallback: true, Notice: audio.SynthesisNotice}
		} else {
			result.Speech = s.speak(ctx, summary.Text)
		}
	}

	if !s.tracker.Current(key, tok) {
		return &PodcastSummary{Superseded: true}, nil
	}
	return result, nil
}

func podcastText(it model.Item, lang model.Language) string {
	topic := ""
	if it.Podcast != nil {
		topic = it.Podcast.Topic
	}
	return fmt.Sprintf("Podcast Title: %s\nDescription: %s\nTopic: %s",
		it.LocalizedTitle(lang), it.LocalizedDescription(lang), topic)
}

// parseLanguage maps anything but Arabic to English.
func parseLanguage(l model.Language) model.Language {
	if strings.EqualFold(string(l), string(model.LanguageArabic)) {
		return model.LanguageArabic
	}
	return model.LanguageEnglish
}

func checkPrompt(field, text string) error {
	if strings.TrimSpace(text) == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	if len([]rune(text)) > maxPromptRunes {
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be at most %d characters", field, maxPromptRunes))
	}
	return nil
}
