// Package portal owns the application state shared by every surface: the
// content collections, the market board, the AI gateway with its request
// tracker, and the identity subscription that keeps profiles in step with
// sign-ins.
//
// There are no package-level globals. The server (or nexusctl) builds one
// State, starts it, hands its parts to the services and closes it on
// shutdown.
package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/nexusmena/internal/content"
	"github.com/sakif/nexusmena/internal/gateway"
	"github.com/sakif/nexusmena/internal/identity"
	"github.com/sakif/nexusmena/internal/market"
	"github.com/sakif/nexusmena/internal/model"
	"github.com/sakif/nexusmena/internal/repository"
)

// Deps are the collaborators State does not own.
type Deps struct {
	Users       repository.UserRepository
	Preferences repository.PreferenceRepository
	Gateway     *gateway.Gateway
	Market      market.Source
	Hub         *identity.Hub
	Logger      *slog.Logger

	// ContentOptions are passed to content.Seeded (clock, id source).
	ContentOptions []content.Option
}

// State is created with New and becomes usable after Start.
type State struct {
	Content *content.Store
	Market  *market.Board
	Gateway *gateway.Gateway
	Tracker *gateway.Tracker
	Hub     *identity.Hub

	users       repository.UserRepository
	preferences repository.PreferenceRepository
	contentOpts []content.Option
	logger      *slog.Logger
	unsubscribe func()
}

func New(d Deps) *State {
	hub := d.Hub
	if hub == nil {
		hub = &identity.Hub{}
	}
	return &State{
		Market:      market.NewBoard(d.Market),
		Gateway:     d.Gateway,
		Tracker:     gateway.NewTracker(),
		Hub:         hub,
		users:       d.Users,
		preferences: d.Preferences,
		contentOpts: d.ContentOptions,
		logger:      d.Logger,
	}
}

// Start seeds the collections, takes the first market snapshot and
// subscribes to identity events. A failed market refresh is logged, not
// fatal: the board stays empty until the next scheduled refresh.
func (s *State) Start(ctx context.Context) error {
	if s.unsubscribe != nil {
		return errors.New("portal: already started")
	}

	store, err := content.Seeded(s.contentOpts...)
	if err != nil {
		return fmt.Errorf("portal: seeding content: %w", err)
	}
	s.Content = store

	if _, err := s.Market.Refresh(ctx); err != nil {
		s.logger.Warn("initial market snapshot failed", slog.String("error", err.Error()))
	}

	s.unsubscribe = s.Hub.Subscribe(s.onIdentity)

	counts := store.Counts()
	s.logger.Info("portal started",
		slog.Int("news", counts[model.KindNews]),
		slog.Int("startups", counts[model.KindStartup]),
		slog.Int("events", counts[model.KindEvent]),
		slog.Int("podcasts", counts[model.KindPodcast]),
		slog.Int("newsletters", counts[model.KindNewsletter]),
		slog.Int("partners", counts[model.KindPartner]),
		slog.Bool("ai", s.Gateway.Available()),
	)
	return nil
}

// Close drops the identity subscription. Safe to call more than once.
func (s *State) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// ChatKey names a user's chat surface for the request tracker. Every key
// of a user shares the userID prefix so sign-out can drop them together.
func ChatKey(userID, surface string) string {
	return userID + ":" + surface
}

func (s *State) onIdentity(ctx context.Context, e identity.Event) error {
	switch e := e.(type) {
	case identity.SignedIn:
		return s.signedIn(ctx, e.Identity)
	case identity.SignedOut:
		s.Tracker.Forget(ChatKey(e.UserID, ""))
		s.logger.Debug("dropped in-flight assistant requests", slog.String("userID", e.UserID))
	}
	return nil
}

// signedIn creates or refreshes the profile and seeds default preferences
// the first time a user is seen. Later sign-ins keep their choices.
func (s *State) signedIn(ctx context.Context, id identity.Identity) error {
	user := &model.User{
		UID:       id.UID,
		Name:      model.DisplayName(id.DisplayName, id.Email),
		Email:     id.Email,
		AvatarURL: id.PhotoURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return fmt.Errorf("portal: upserting profile for %s: %w", id.UID, err)
	}

	created, err := s.preferences.InitPreferences(ctx, user.ID, model.DefaultPreferences())
	if err != nil {
		return fmt.Errorf("portal: initialising preferences for %s: %w", user.ID, err)
	}
	if created {
		s.logger.Info("new profile", slog.String("userID", user.ID), slog.String("uid", id.UID))
	}
	return nil
}
