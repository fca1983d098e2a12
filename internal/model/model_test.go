package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name, display, email, want string
	}{
		{"display name wins", "Mona Hany", "mona@example.com", "Mona Hany"},
		{"email local part", "", "karim@example.com", "karim"},
		{"blank display name", "   ", "karim@example.com", "karim"},
		{"no name no email", "", "", "User"},
		{"empty local part", "", "@example.com", "User"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayName(tt.display, tt.email); got != tt.want {
				t.Errorf("DisplayName(%q, %q) = %q, want %q", tt.display, tt.email, got, tt.want)
			}
		})
	}
}

func TestChatTitle(t *testing.T) {
	saved := time.Date(2024, 5, 1, 15, 4, 0, 0, time.UTC)
	msgs := []ChatMessage{{Role: RoleUser, Content: "How is the EGX 30 doing this week?"}}

	got := ChatTitle(saved, msgs)
	want := "Chat 2024-05-01 - How is the EGX 30 do..."
	if got != want {
		t.Errorf("ChatTitle = %q, want %q", got, want)
	}
}

func TestChatTitle_ArabicCountsRunes(t *testing.T) {
	saved := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	msgs := []ChatMessage{{Role: RoleUser, Content: "ما هي أحدث أخبار الشركات الناشئة في مصر؟"}}

	got := ChatTitle(saved, msgs)
	want := "Chat 2024-05-01 - ما هي أحدث أخبار الش..."
	if got != want {
		t.Errorf("ChatTitle = %q, want %q", got, want)
	}
}

func TestDate_JSON(t *testing.T) {
	var d Date
	if err := json.Unmarshal([]byte(`"2024-03-10"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.String() != "2024-03-10" {
		t.Errorf("String() = %q", d.String())
	}

	if err := json.Unmarshal([]byte(`"2024-03-10T22:15:00Z"`), &d); err != nil {
		t.Fatalf("unmarshal RFC3339: %v", err)
	}
	b, _ := json.Marshal(d)
	if string(b) != `"2024-03-10"` {
		t.Errorf("marshal = %s", b)
	}

	if err := json.Unmarshal([]byte(`"next tuesday"`), &d); err == nil {
		t.Error("expected error for free-text date")
	}
}

func TestParseKind(t *testing.T) {
	for in, want := range map[string]Kind{
		"latest":   KindNews,
		"Startups": KindStartup,
		"events":   KindEvent,
		"podcast":  KindPodcast,
		"partners": KindPartner,
	} {
		got, ok := ParseKind(in)
		if !ok || got != want {
			t.Errorf("ParseKind(%q) = %q, %v; want %q", in, got, ok, want)
		}
	}
	if _, ok := ParseKind("videos"); ok {
		t.Error("ParseKind(videos) should fail")
	}
}

func TestNewPartner_FillsBase(t *testing.T) {
	it := NewPartner("pt1", "Cloud partner", Partner{Name: "AWS", Website: "https://aws.amazon.com", Logo: "logo.png", Type: RegionGlobal})
	if it.Kind != KindPartner || it.Title != "AWS" || it.URL != "https://aws.amazon.com" || it.ImageURL != "logo.png" {
		t.Errorf("unexpected partner item: %+v", it)
	}
	if it.Label() != "Partner" {
		t.Errorf("Label = %q", it.Label())
	}
}
