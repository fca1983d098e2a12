package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/nexusmena/internal/audio"
	"github.com/sakif/nexusmena/internal/audio/speaker"
	"github.com/sakif/nexusmena/internal/gateway"
	"github.com/sakif/nexusmena/internal/model"
)

// inputText returns the joined args, or stdin when there are none or the
// only arg is "-".
func (a *app) inputText(args []string) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		b, err := io.ReadAll(a.in)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		args = []string{string(b)}
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", errors.New("no input text")
	}
	return text, nil
}

func parseLanguage(s string) (model.Language, error) {
	switch strings.ToLower(s) {
	case "en", "english":
		return model.LanguageEnglish, nil
	case "ar", "arabic":
		return model.LanguageArabic, nil
	}
	return "", fmt.Errorf("unknown language %q (want en or ar)", s)
}

// report prints the outcome's text and turns a fallback into a warning on
// stderr. Fallbacks are not errors: the text is still usable.
func (a *app) report(out gateway.Outcome[string]) {
	if !out.OK() {
		a.logger.Warn("AI request fell back", "error", out.Err)
	}
	fmt.Fprintln(a.out, out.Get())
}

// --- Summarize Command ---

func newSummarizeCmd(a *app) *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "summarize [text|-]",
		Short: "Summarize text into three bullet points",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := parseLanguage(lang)
			if err != nil {
				return err
			}
			text, err := a.inputText(args)
			if err != nil {
				return err
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			a.report(gw.Summarize(cmd.Context(), text, l))
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "en", "summary language (en, ar)")
	return cmd
}

// --- Translate Command ---

func newTranslateCmd(a *app) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "translate [text|-]",
		Short: "Translate text",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := parseLanguage(to)
			if err != nil {
				return err
			}
			text, err := a.inputText(args)
			if err != nil {
				return err
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			a.report(gw.Translate(cmd.Context(), text, l))
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "ar", "target language (en, ar)")
	return cmd
}

// --- Speak Command ---

func newSpeakCmd(a *app) *cobra.Command {
	var (
		outPath string
		play    bool
	)
	cmd := &cobra.Command{
		Use:   "speak [text|-]",
		Short: "Synthesize speech and play it or save it as WAV",
		Long: `Synthesize speech with the configured voice.
--play sends it to the default audio output; otherwise (or when --out is
also given) it is written to a WAV file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.inputText(args)
			if err != nil {
				return err
			}
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}
			out := gw.SynthesizeSpeech(cmd.Context(), text)
			if !out.OK() {
				return fmt.Errorf("%s: %w", audio.SynthesisNotice, out.Err)
			}
			buf := audio.Decode(out.Value)
			if buf.Empty() {
				return errors.New(audio.SynthesisNotice)
			}
			took := buf.Duration().Round(time.Millisecond)

			if !play || cmd.Flags().Changed("out") {
				if err := a.playOn(audio.WAVFileSink{Path: outPath}, buf); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "wrote %s (%s)\n", outPath, took)
			}
			if play {
				if err := a.playOn(a.outputSink(), buf); err != nil {
					return fmt.Errorf("%s: %w", audio.Notice(err), err)
				}
				fmt.Fprintf(a.out, "played %s\n", took)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "speech.wav", "output WAV file")
	cmd.Flags().BoolVar(&play, "play", false, "play on the default audio output")
	return cmd
}

// playOn plays buf to completion on sink.
func (a *app) playOn(sink audio.Sink, buf audio.Buffer) error {
	player := audio.NewPlayer(sink, a.logger)
	if err := player.PlayBuffer(buf); err != nil {
		return err
	}
	return player.Wait()
}

func (a *app) outputSink() audio.Sink {
	if a.sink != nil {
		return a.sink
	}
	return speaker.New()
}

// --- Chat Command ---

func newChatCmd(a *app) *cobra.Command {
	var pageContext string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the NexusMena assistant",
		Long:  "Interactive chat. /reset clears the history, /quit (or EOF) exits.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := a.gateway(cmd.Context())
			if err != nil {
				return err
			}

			var history []model.ChatMessage
			scanner := bufio.NewScanner(a.in)
			fmt.Fprint(a.out, "> ")
			for scanner.Scan() {
				if cmd.Context().Err() != nil {
					return nil
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
				case "/quit", "/exit":
					return nil
				case "/reset":
					history = nil
					fmt.Fprintln(a.out, "history cleared")
				default:
					reply := gw.ContinueChat(cmd.Context(), history, line, pageContext)
					if !reply.OK() {
						a.logger.Warn("chat fell back", "error", reply.Err)
					}
					fmt.Fprintln(a.out, reply.Get())
					history = append(history,
						model.ChatMessage{Role: model.RoleUser, Content: line},
						model.ChatMessage{Role: model.RoleAssistant, Content: reply.Get()},
					)
				}
				fmt.Fprint(a.out, "> ")
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&pageContext, "context", "", "page context to ground the conversation")
	return cmd
}
