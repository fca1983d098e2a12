package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"

	"github.com/sakif/nexusmena/internal/model"
)

// FIXTURE FORMAT:
// seed.json holds one array per collection. Dates are stored as day offsets
// ("dayOffset": -2 means two days before the seeding date) so the portal
// always looks current no matter when it is started.

//go:embed fixtures/seed.json
var seedJSON []byte

type record struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	TitleAr       string       `json:"titleAr"`
	Description   string       `json:"description"`
	DescriptionAr string       `json:"descriptionAr"`
	Source        string       `json:"source"`
	URL           string       `json:"url"`
	DayOffset     int          `json:"dayOffset"`
	Region        model.Region `json:"region"`
	ImageURL      string       `json:"imageUrl"`

	// news / startup
	Category string   `json:"category"`
	Sector   string   `json:"sector"`
	Tags     []string `json:"tags"`

	// event; Type is shared with partner (region type there)
	Location         string `json:"location"`
	StartOffset      int    `json:"startOffset"`
	EndOffset        int    `json:"endOffset"`
	RegistrationLink string `json:"registrationLink"`
	IsVirtual        bool   `json:"isVirtual"`
	Type             string `json:"type"`

	// podcast
	Duration      string         `json:"duration"`
	AudioURL      string         `json:"audioUrl"`
	SummaryPoints []string       `json:"summaryPoints"`
	Language      model.Language `json:"language"`
	Topic         string         `json:"topic"`

	// newsletter
	Frequency     string `json:"frequency"`
	SubscribeLink string `json:"subscribeLink"`

	// partner
	Name         string   `json:"name"`
	Logo         string   `json:"logo"`
	Website      string   `json:"website"`
	ContactEmail string   `json:"contactEmail"`
	Services     []string `json:"services"`
}

type fixture struct {
	Resources   []model.Resource `json:"resources"`
	News        []record         `json:"news"`
	Startups    []record         `json:"startups"`
	Events      []record         `json:"events"`
	Podcasts    []record         `json:"podcasts"`
	Newsletters []record         `json:"newsletters"`
	Partners    []record         `json:"partners"`
}

// Seeded returns a store filled from the embedded fixture, with dates
// computed relative to the store's clock.
func Seeded(opts ...Option) (*Store, error) {
	s := New(opts...)
	if err := s.seed(seedJSON); err != nil {
		return nil, err
	}
	return s, nil
}

// Load adds the collections of a fixture read from r, in the embedded format.
// Fixture items are appended after any items already stored.
func (s *Store) Load(r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("content: reading fixture: %w", err)
	}
	return s.seed(b)
}

func (s *Store) seed(b []byte) error {
	var f fixture
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("content: decoding fixture: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	today := model.NewDate(s.now())
	day := func(offset int) model.Date {
		return model.Date{Time: today.AddDate(0, 0, offset)}
	}

	for _, r := range f.News {
		s.items[model.KindNews] = append(s.items[model.KindNews],
			model.NewNews(model.KindNews, r.base(day), r.news()))
	}
	for _, r := range f.Startups {
		s.items[model.KindStartup] = append(s.items[model.KindStartup],
			model.NewNews(model.KindStartup, r.base(day), r.news()))
	}
	for _, r := range f.Events {
		s.items[model.KindEvent] = append(s.items[model.KindEvent], model.NewEvent(r.base(day), model.Event{
			Location:         r.Location,
			StartDate:        day(r.StartOffset),
			EndDate:          day(r.EndOffset),
			RegistrationLink: r.RegistrationLink,
			IsVirtual:        r.IsVirtual,
			Type:             r.Type,
		}))
	}
	for _, r := range f.Podcasts {
		s.items[model.KindPodcast] = append(s.items[model.KindPodcast], model.NewPodcast(r.base(day), model.Podcast{
			Duration:      r.Duration,
			AudioURL:      r.AudioURL,
			SummaryPoints: r.SummaryPoints,
			Language:      r.Language,
			Topic:         r.Topic,
		}))
	}
	for _, r := range f.Newsletters {
		s.items[model.KindNewsletter] = append(s.items[model.KindNewsletter], model.NewNewsletter(r.base(day), model.Newsletter{
			Frequency:     r.Frequency,
			SubscribeLink: r.SubscribeLink,
		}))
	}
	for _, r := range f.Partners {
		s.items[model.KindPartner] = append(s.items[model.KindPartner], model.NewPartner(r.ID, r.Description, model.Partner{
			Name:         r.Name,
			Logo:         r.Logo,
			Website:      r.Website,
			ContactEmail: r.ContactEmail,
			Type:         model.Region(r.Type),
			Services:     r.Services,
		}))
	}
	s.resources = append(s.resources, f.Resources...)
	return nil
}

func (r record) base(day func(int) model.Date) model.Base {
	return model.Base{
		ID:            r.ID,
		Title:         r.Title,
		TitleAr:       r.TitleAr,
		Description:   r.Description,
		DescriptionAr: r.DescriptionAr,
		Source:        r.Source,
		URL:           r.URL,
		Date:          day(r.DayOffset),
		Region:        r.Region,
		ImageURL:      r.ImageURL,
	}
}

func (r record) news() model.News {
	return model.News{Category: r.Category, Sector: r.Sector, Tags: r.Tags}
}
