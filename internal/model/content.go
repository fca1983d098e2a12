// Package model defines the data structures used throughout the application.
//
// CONTENT UNION:
// The portal aggregates six kinds of displayable content. Rather than guessing
// an item's kind from which fields happen to be present (an event has a start
// date, a podcast has a duration...), every Item carries an explicit Kind that
// is set once, by the constructor, when the item is created. Exactly one of
// the variant pointers matching that Kind is non-nil.
//
//	Item{Kind: KindEvent, Base: {...}, Event: &Event{...}}
//
// Consumers switch on Kind. Two variants sharing a field name can never be
// confused this way.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies which collection (and which variant payload) an Item belongs to.
type Kind string

const (
	KindNews       Kind = "news"
	KindStartup    Kind = "startup"
	KindEvent      Kind = "event"
	KindPodcast    Kind = "podcast"
	KindNewsletter Kind = "newsletter"
	KindPartner    Kind = "partner"
)

// Kinds lists every content kind in the order collections are scanned when
// resolving saved items.
var Kinds = []Kind{KindNews, KindStartup, KindEvent, KindPodcast, KindNewsletter, KindPartner}

// ParseKind maps a route or form value ("latest", "events", "podcast", ...) to a Kind.
// Plural forms and the original admin form's category names are accepted.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "news", "latest":
		return KindNews, true
	case "startup", "startups":
		return KindStartup, true
	case "event", "events":
		return KindEvent, true
	case "podcast", "podcasts":
		return KindPodcast, true
	case "newsletter", "newsletters":
		return KindNewsletter, true
	case "partner", "partners":
		return KindPartner, true
	}
	return "", false
}

// Region is the geographic tag attached to content.
type Region string

const (
	RegionGlobal Region = "Global"
	RegionEgypt  Region = "Egypt"
	RegionMENA   Region = "MENA"
)

// Language is a content or UI language.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

// Name returns the English name of the language, as used in translation prompts.
func (l Language) Name() string {
	if l == LanguageArabic {
		return "Arabic"
	}
	return "English"
}

// Date is a calendar day serialised as "YYYY-MM-DD".
// Unmarshalling also accepts full RFC 3339 timestamps.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate truncates t to its calendar day (UTC).
func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("model: date must be a string: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("model: invalid date %q", s)
	}
	*d = NewDate(t)
	return nil
}

// Base holds the fields every displayable item shares.
// TitleAr and DescriptionAr are optional Arabic renditions.
type Base struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	TitleAr       string `json:"titleAr,omitempty"`
	Description   string `json:"description"`
	DescriptionAr string `json:"descriptionAr,omitempty"`
	Source        string `json:"source"`
	URL           string `json:"url"`
	Date          Date   `json:"date"`
	Region        Region `json:"region"`
	ImageURL      string `json:"imageUrl"`
}

// News is the payload of news and startup items.
type News struct {
	Category string   `json:"category"`         // Tech | Startup | Economy
	Sector   string   `json:"sector,omitempty"` // Fintech | Healthtech | AI | E-commerce | SaaS | General
	Tags     []string `json:"tags"`
}

// Event is the payload of calendar items.
type Event struct {
	Location         string `json:"location"`
	StartDate        Date   `json:"startDate"`
	EndDate          Date   `json:"endDate"`
	RegistrationLink string `json:"registrationLink"`
	IsVirtual        bool   `json:"isVirtual"`
	Type             string `json:"type"` // Conference | Hackathon | Workshop | Meetup
}

// Podcast is the payload of podcast episodes.
// Duration is free text such as "45 min"; see filter.ParseMinutes.
type Podcast struct {
	Duration      string   `json:"duration"`
	AudioURL      string   `json:"audioUrl,omitempty"`
	SummaryPoints []string `json:"summaryPoints"`
	Language      Language `json:"language"`
	Topic         string   `json:"topic"` // Business | Tech | Startup | AI | Entrepreneurship
}

// Newsletter is the payload of newsletter items.
type Newsletter struct {
	Frequency     string `json:"frequency"` // Daily | Weekly | Monthly
	SubscribeLink string `json:"subscribeLink"`
}

// Partner is the payload of partner organisations.
// Partners have no title or URL of their own; NewPartner maps Name, Website
// and Logo onto the shared Base so every item can be listed the same way.
type Partner struct {
	Name         string   `json:"name"`
	Logo         string   `json:"logo"`
	Website      string   `json:"website"`
	ContactEmail string   `json:"contactEmail"`
	Type         Region   `json:"type"` // Global | Egypt
	Services     []string `json:"services"`
}

// Item is one piece of displayable content. Build it with one of the New*
// constructors so Kind and the payload always agree.
type Item struct {
	Kind Kind `json:"kind"`
	Base
	News       *News       `json:"news,omitempty"`
	Event      *Event      `json:"event,omitempty"`
	Podcast    *Podcast    `json:"podcast,omitempty"`
	Newsletter *Newsletter `json:"newsletter,omitempty"`
	Partner    *Partner    `json:"partner,omitempty"`
}

// NewNews builds a news item. Startup stories share the payload but live in
// their own collection, so the kind must be given.
func NewNews(kind Kind, base Base, n News) Item {
	if kind != KindStartup {
		kind = KindNews
	}
	return Item{Kind: kind, Base: base, News: &n}
}

func NewEvent(base Base, e Event) Item {
	return Item{Kind: KindEvent, Base: base, Event: &e}
}

func NewPodcast(base Base, p Podcast) Item {
	return Item{Kind: KindPodcast, Base: base, Podcast: &p}
}

func NewNewsletter(base Base, n Newsletter) Item {
	return Item{Kind: KindNewsletter, Base: base, Newsletter: &n}
}

// NewPartner builds a partner item, filling the shared fields from the partner record.
func NewPartner(id, description string, p Partner) Item {
	return Item{
		Kind: KindPartner,
		Base: Base{
			ID:          id,
			Title:       p.Name,
			Description: description,
			Source:      p.Name,
			URL:         p.Website,
			Region:      p.Type,
			ImageURL:    p.Logo,
		},
		Partner: &p,
	}
}

// Label is the human-readable kind shown on saved-item cards.
func (it Item) Label() string {
	switch it.Kind {
	case KindNews:
		return "News"
	case KindStartup:
		return "Startup"
	case KindEvent:
		return "Event"
	case KindPodcast:
		return "Podcast"
	case KindNewsletter:
		return "Newsletter"
	case KindPartner:
		return "Partner"
	}
	return "Item"
}

// LocalizedTitle returns the Arabic title when requested and available.
func (it Item) LocalizedTitle(lang Language) string {
	if lang == LanguageArabic && it.TitleAr != "" {
		return it.TitleAr
	}
	return it.Title
}

// LocalizedDescription returns the Arabic description when requested and available.
func (it Item) LocalizedDescription(lang Language) string {
	if lang == LanguageArabic && it.DescriptionAr != "" {
		return it.DescriptionAr
	}
	return it.Description
}

// ResourceCategory groups the platform's external sources.
type ResourceCategory string

const (
	ResourceNews       ResourceCategory = "News"
	ResourceStartup    ResourceCategory = "Startup"
	ResourceEvent      ResourceCategory = "Event"
	ResourcePodcast    ResourceCategory = "Podcast"
	ResourceNewsletter ResourceCategory = "Newsletter"
	ResourceOther      ResourceCategory = "Other"
)

// Resource is a trusted external source listed alongside the content pages.
type Resource struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	URL         string           `json:"url"`
	Type        ResourceCategory `json:"type"`
	Description string           `json:"description,omitempty"`
}
