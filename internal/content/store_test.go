package content

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/model"
)

var seedDay = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	n := 0
	s, err := Seeded(
		WithClock(func() time.Time { return seedDay }),
		WithIDs(func() string { n++; return fmt.Sprintf("new%d", n) }),
	)
	if err != nil {
		t.Fatalf("Seeded: %v", err)
	}
	return s
}

// ============================================================
// Seeding
// ============================================================

func TestSeeded_Collections(t *testing.T) {
	s := newTestStore(t)

	want := map[model.Kind]int{
		model.KindNews:       7,
		model.KindStartup:    5,
		model.KindEvent:      4,
		model.KindPodcast:    9,
		model.KindNewsletter: 3,
		model.KindPartner:    4,
	}
	got := s.Counts()
	for k, n := range want {
		if got[k] != n {
			t.Errorf("%s: %d items, want %d", k, got[k], n)
		}
	}
	if len(s.Resources()) != 15 {
		t.Errorf("resources = %d, want 15", len(s.Resources()))
	}

	for _, k := range model.Kinds {
		for _, it := range s.List(k) {
			if it.Kind != k {
				t.Errorf("item %s in %s collection has kind %s", it.ID, k, it.Kind)
			}
		}
	}
}

func TestSeeded_RelativeDates(t *testing.T) {
	s := newTestStore(t)

	n1, err := s.Get(model.KindNews, "n1")
	if err != nil {
		t.Fatalf("Get n1: %v", err)
	}
	if n1.Date.String() != "2025-03-07" {
		t.Errorf("n1 date = %s, want 2025-03-07 (three days before seeding)", n1.Date)
	}
	if n1.TitleAr == "" {
		t.Error("n1 should carry its Arabic title")
	}

	e1, err := s.Get(model.KindEvent, "e1")
	if err != nil {
		t.Fatalf("Get e1: %v", err)
	}
	if e1.Event == nil {
		t.Fatal("e1 has no event payload")
	}
	if e1.Event.StartDate.String() != "2025-04-09" || e1.Event.EndDate.String() != "2025-04-11" {
		t.Errorf("e1 dates = %s..%s", e1.Event.StartDate, e1.Event.EndDate)
	}
}

func TestSeeded_PartnerFillsBase(t *testing.T) {
	s := newTestStore(t)
	pt, err := s.Get(model.KindPartner, "pt3")
	if err != nil {
		t.Fatalf("Get pt3: %v", err)
	}
	if pt.Title != "Flat6Labs" || pt.URL != "https://flat6labs.com" || pt.Region != model.RegionEgypt {
		t.Errorf("partner base = %+v", pt.Base)
	}
	if pt.Partner == nil || len(pt.Partner.Services) != 3 {
		t.Errorf("partner payload = %+v", pt.Partner)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(model.KindPodcast, "e1")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get event id from podcasts: err = %v, want ErrNotFound", err)
	}
}

func TestList_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	l := s.List(model.KindNews)
	l[0].Title = "mutated"
	if s.List(model.KindNews)[0].Title == "mutated" {
		t.Error("List must not expose the store's slice")
	}
}

// ============================================================
// Resolve
// ============================================================

func TestResolve_CollectionOrder(t *testing.T) {
	s := newTestStore(t)

	// ids given out of collection order; unknown ids are skipped
	got := s.Resolve([]string{"pt1", "p2", "missing", "e3", "n1", "s1", "nl2"})

	wantIDs := []string{"n1", "s1", "e3", "p2", "nl2", "pt1"}
	wantKinds := []model.Kind{model.KindNews, model.KindStartup, model.KindEvent, model.KindPodcast, model.KindNewsletter, model.KindPartner}
	if len(got) != len(wantIDs) {
		t.Fatalf("Resolve returned %d items, want %d", len(got), len(wantIDs))
	}
	for i, it := range got {
		if it.ID != wantIDs[i] || it.Kind != wantKinds[i] {
			t.Errorf("got[%d] = %s (%s), want %s (%s)", i, it.ID, it.Kind, wantIDs[i], wantKinds[i])
		}
	}
}

func TestResolve_EventIsNeverPodcast(t *testing.T) {
	s := newTestStore(t)
	got := s.Resolve([]string{"e4"})
	if len(got) != 1 {
		t.Fatalf("Resolve(e4) = %d items", len(got))
	}
	it := got[0]
	if it.Kind != model.KindEvent || it.Event == nil || it.Podcast != nil {
		t.Errorf("e4 resolved as %s (event=%v podcast=%v)", it.Kind, it.Event != nil, it.Podcast != nil)
	}
	if it.Label() != "Event" {
		t.Errorf("Label = %q, want Event", it.Label())
	}
}

func TestResolve_Empty(t *testing.T) {
	s := newTestStore(t)
	if got := s.Resolve(nil); got == nil || len(got) != 0 {
		t.Errorf("Resolve(nil) = %v, want empty", got)
	}
}

// ============================================================
// Add
// ============================================================

func TestAdd_DefaultsPerKind(t *testing.T) {
	s := newTestStore(t)
	d := Draft{Title: "New thing", Description: "Something happened", URL: "https://example.com/x"}

	news, err := s.Add(model.KindNews, d)
	if err != nil {
		t.Fatalf("Add news: %v", err)
	}
	if news.News.Category != "Tech" || len(news.News.Tags) != 1 || news.News.Tags[0] != "Admin" {
		t.Errorf("news defaults = %+v", news.News)
	}
	if news.Source != DefaultSource || news.Region != model.RegionGlobal || news.ImageURL != DefaultImageURL {
		t.Errorf("base defaults = %+v", news.Base)
	}
	if news.Date.String() != "2025-03-10" {
		t.Errorf("date = %s, want seeding day", news.Date)
	}

	st, _ := s.Add(model.KindStartup, d)
	if st.News.Category != "Startup" || st.News.Sector != "General" || st.News.Tags[0] != "New" {
		t.Errorf("startup defaults = %+v", st.News)
	}

	ev, _ := s.Add(model.KindEvent, d)
	if ev.Event.Location != "TBD" || ev.Event.Type != "Conference" || ev.Event.RegistrationLink != d.URL {
		t.Errorf("event defaults = %+v", ev.Event)
	}
	if ev.Event.StartDate.String() != "2025-03-10" || ev.Event.EndDate.String() != "2025-03-10" {
		t.Errorf("event dates = %s..%s", ev.Event.StartDate, ev.Event.EndDate)
	}

	pod, _ := s.Add(model.KindPodcast, d)
	if pod.Podcast.Duration != "30 min" || pod.Podcast.Topic != "Tech" ||
		pod.Podcast.Language != model.LanguageEnglish || pod.Podcast.SummaryPoints[0] != "New Episode" {
		t.Errorf("podcast defaults = %+v", pod.Podcast)
	}
}

func TestAdd_PrependsWithFreshID(t *testing.T) {
	s := newTestStore(t)
	before := len(s.List(model.KindPodcast))

	it, err := s.Add(model.KindPodcast, Draft{Title: "Ep 1", Description: "d", URL: "https://pod.example"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if it.ID != "new1" {
		t.Errorf("id = %q, want new1", it.ID)
	}
	list := s.List(model.KindPodcast)
	if len(list) != before+1 || list[0].ID != "new1" {
		t.Errorf("new item should be first; got %s of %d", list[0].ID, len(list))
	}
}

func TestAdd_PayloadOverridesDefaults(t *testing.T) {
	s := newTestStore(t)
	it, err := s.Add(model.KindPodcast, Draft{
		Title: "Long chat", Description: "d", URL: "https://pod.example",
		Podcast: &model.Podcast{Duration: "95 min", Language: model.LanguageArabic},
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if it.Podcast.Duration != "95 min" || it.Podcast.Language != model.LanguageArabic || it.Podcast.Topic != "Tech" {
		t.Errorf("merged payload = %+v", it.Podcast)
	}
}

func TestAdd_PartnerKeepsDraftBase(t *testing.T) {
	s := newTestStore(t)
	d := Draft{
		Title: "Cloud Co", TitleAr: "كلاود", Description: "Hosting", DescriptionAr: "استضافة",
		URL: "https://cloud.example", Date: model.NewDate(time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)),
	}

	it, err := s.Add(model.KindPartner, d)
	if err != nil {
		t.Fatalf("Add partner: %v", err)
	}
	if it.TitleAr != d.TitleAr || it.DescriptionAr != d.DescriptionAr {
		t.Errorf("translations = %q / %q, want the draft's", it.TitleAr, it.DescriptionAr)
	}
	if it.Date.String() != "2024-11-05" {
		t.Errorf("date = %s, want 2024-11-05", it.Date)
	}
	if it.Title != "Cloud Co" || it.Partner.Name != "Cloud Co" || it.URL != d.URL {
		t.Errorf("partner base = %+v", it.Base)
	}

	undated, _ := s.Add(model.KindPartner, Draft{Title: "Other", Description: "d", URL: "https://other.example"})
	if undated.Date.String() != "2025-03-10" {
		t.Errorf("undated partner date = %s, want seeding day", undated.Date)
	}
}

func TestAdd_Validation(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		name      string
		kind      model.Kind
		draft     Draft
		wantField string
	}{
		{"missing title", model.KindNews, Draft{Description: "d", URL: "https://x.io"}, "title"},
		{"long title", model.KindNews, Draft{Title: strings.Repeat("a", 301), Description: "d", URL: "https://x.io"}, "title"},
		{"missing description", model.KindNews, Draft{Title: "t", URL: "https://x.io"}, "description"},
		{"missing url", model.KindEvent, Draft{Title: "t", Description: "d"}, "url"},
		{"relative url", model.KindEvent, Draft{Title: "t", Description: "d", URL: "/events/1"}, "url"},
		{"unknown kind", model.Kind("video"), Draft{Title: "t", Description: "d", URL: "https://x.io"}, "kind"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Add(tt.kind, tt.draft)
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
		})
	}
}

func TestContainsURL(t *testing.T) {
	s := newTestStore(t)
	if !s.ContainsURL(model.KindNews, "https://WIRED.com/") {
		t.Error("ContainsURL should ignore case and trailing slash")
	}
	if s.ContainsURL(model.KindNews, "https://wamda.com") {
		t.Error("wamda.com is a startup url, not news")
	}
}

func TestAddResource(t *testing.T) {
	s := newTestStore(t)
	r, err := s.AddResource(model.Resource{Name: "Magnitt", URL: "https://magnitt.com"})
	if err != nil {
		t.Fatalf("AddResource: %v", err)
	}
	if r.ID == "" || r.Type != model.ResourceOther {
		t.Errorf("resource = %+v", r)
	}
	if s.Resources()[0].Name != "Magnitt" {
		t.Error("new resource should be first")
	}
	if _, err := s.AddResource(model.Resource{URL: "https://x.io"}); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("missing name: err = %v", err)
	}
}

func TestConcurrentAddAndList(t *testing.T) {
	s, err := Seeded()
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Add(model.KindNews, Draft{Title: fmt.Sprintf("t%d", i), Description: "d", URL: "https://x.io"})
		}(i)
		go func() {
			defer wg.Done()
			_ = s.List(model.KindNews)
		}()
	}
	wg.Wait()
	if got := len(s.List(model.KindNews)); got != 27 {
		t.Errorf("news count = %d, want 27", got)
	}
}
