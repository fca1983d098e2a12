package content

import (
	"net/url"
	"strings"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/model"
)

// Default values applied to submitted items, matching the admin form.
const (
	DefaultSource   = "Admin Added"
	DefaultImageURL = "https://picsum.photos/800/400"
)

// Draft is a submitted item before it receives an id and its kind's defaults.
// At most the payload matching the target kind is read; the rest are ignored.
type Draft struct {
	Title         string       `json:"title"`
	TitleAr       string       `json:"titleAr,omitempty"`
	Description   string       `json:"description"`
	DescriptionAr string       `json:"descriptionAr,omitempty"`
	Source        string       `json:"source"`
	URL           string       `json:"url"`
	Region        model.Region `json:"region"`
	ImageURL      string       `json:"imageUrl"`
	Date          model.Date   `json:"date"`

	News       *model.News       `json:"news,omitempty"`
	Event      *model.Event      `json:"event,omitempty"`
	Podcast    *model.Podcast    `json:"podcast,omitempty"`
	Newsletter *model.Newsletter `json:"newsletter,omitempty"`
	Partner    *model.Partner    `json:"partner,omitempty"`
}

// Add validates d, gives it a fresh id plus the defaults of kind, and places
// it at the head of that collection.
//
// DEFAULTS PER KIND:
//
//	news       category Tech, tags [Admin]
//	startup    category Startup, sector General, tags [New]
//	event      starts and ends today, Conference, registration = url, location TBD
//	podcast    30 min, topic Tech, language en, key points [New Episode]
//	newsletter frequency Weekly, subscribe link = url
//	partner    name = title, website = url, logo = image
//
// Fields present in the draft's payload win over the defaults.
func (s *Store) Add(kind model.Kind, d Draft) (model.Item, error) {
	if err := d.validate(kind); err != nil {
		return model.Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := model.Base{
		ID:            s.newID(),
		Title:         strings.TrimSpace(d.Title),
		TitleAr:       d.TitleAr,
		Description:   strings.TrimSpace(d.Description),
		DescriptionAr: d.DescriptionAr,
		Source:        or(d.Source, DefaultSource),
		URL:           strings.TrimSpace(d.URL),
		Region:        model.Region(or(string(d.Region), string(model.RegionGlobal))),
		ImageURL:      or(d.ImageURL, DefaultImageURL),
		Date:          d.Date,
	}
	today := model.NewDate(s.now())
	if base.Date.IsZero() {
		base.Date = today
	}

	var it model.Item
	switch kind {
	case model.KindNews:
		n := model.News{Category: "Tech", Tags: []string{"Admin"}}
		if d.News != nil {
			n = mergeNews(n, *d.News)
		}
		it = model.NewNews(model.KindNews, base, n)
	case model.KindStartup:
		n := model.News{Category: "Startup", Sector: "General", Tags: []string{"New"}}
		if d.News != nil {
			n = mergeNews(n, *d.News)
		}
		it = model.NewNews(model.KindStartup, base, n)
	case model.KindEvent:
		e := model.Event{
			Location:         "TBD",
			StartDate:        today,
			EndDate:          today,
			RegistrationLink: base.URL,
			Type:             "Conference",
		}
		if d.Event != nil {
			e = mergeEvent(e, *d.Event)
		}
		if d.Date.IsZero() {
			base.Date = e.StartDate
		}
		it = model.NewEvent(base, e)
	case model.KindPodcast:
		p := model.Podcast{
			Duration:      "30 min",
			Topic:         "Tech",
			Language:      model.LanguageEnglish,
			SummaryPoints: []string{"New Episode"},
		}
		if d.Podcast != nil {
			p = mergePodcast(p, *d.Podcast)
		}
		it = model.NewPodcast(base, p)
	case model.KindNewsletter:
		n := model.Newsletter{Frequency: "Weekly", SubscribeLink: base.URL}
		if d.Newsletter != nil {
			n.Frequency = or(d.Newsletter.Frequency, n.Frequency)
			n.SubscribeLink = or(d.Newsletter.SubscribeLink, n.SubscribeLink)
		}
		it = model.NewNewsletter(base, n)
	case model.KindPartner:
		p := model.Partner{Name: base.Title, Website: base.URL, Logo: base.ImageURL, Type: base.Region}
		if d.Partner != nil {
			p.Name = or(d.Partner.Name, p.Name)
			p.Website = or(d.Partner.Website, p.Website)
			p.Logo = or(d.Partner.Logo, p.Logo)
			p.ContactEmail = d.Partner.ContactEmail
			p.Services = d.Partner.Services
			if d.Partner.Type != "" {
				p.Type = d.Partner.Type
			}
		}
		it = model.NewPartner(base.ID, base.Description, p)
		// NewPartner derives the rest of Base from the payload
		it.TitleAr, it.DescriptionAr, it.Date = base.TitleAr, base.DescriptionAr, base.Date
	}

	s.insert(it)
	return it, nil
}

func (d Draft) validate(kind model.Kind) error {
	if !knownKind(kind) {
		return apperror.ValidationFailed("kind", "unknown content kind "+string(kind))
	}
	if strings.TrimSpace(d.Title) == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if len(d.Title) > 300 {
		return apperror.ValidationFailed("title", "title must be 300 characters or fewer")
	}
	if strings.TrimSpace(d.Description) == "" {
		return apperror.ValidationFailed("description", "description is required")
	}
	return validateURL("url", strings.TrimSpace(d.URL))
}

func validateURL(field, raw string) error {
	if raw == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.ValidationFailed(field, field+" must be an absolute http(s) URL")
	}
	return nil
}

func knownKind(k model.Kind) bool {
	for _, known := range model.Kinds {
		if k == known {
			return true
		}
	}
	return false
}

func mergeNews(def, in model.News) model.News {
	def.Category = or(in.Category, def.Category)
	def.Sector = or(in.Sector, def.Sector)
	if len(in.Tags) > 0 {
		def.Tags = in.Tags
	}
	return def
}

func mergeEvent(def, in model.Event) model.Event {
	def.Location = or(in.Location, def.Location)
	def.RegistrationLink = or(in.RegistrationLink, def.RegistrationLink)
	def.Type = or(in.Type, def.Type)
	def.IsVirtual = in.IsVirtual
	if !in.StartDate.IsZero() {
		def.StartDate = in.StartDate
	}
	if !in.EndDate.IsZero() {
		def.EndDate = in.EndDate
	}
	return def
}

func mergePodcast(def, in model.Podcast) model.Podcast {
	def.Duration = or(in.Duration, def.Duration)
	def.AudioURL = in.AudioURL
	def.Topic = or(in.Topic, def.Topic)
	if in.Language != "" {
		def.Language = in.Language
	}
	if len(in.SummaryPoints) > 0 {
		def.SummaryPoints = in.SummaryPoints
	}
	return def
}

func or(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
