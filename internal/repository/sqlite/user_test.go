package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/nexusmena/internal/apperror"
	"github.com/sakif/nexusmena/internal/model"
)

// newTestDB returns a fresh in-memory database, closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:) error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser upserts a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, uid, name string) *model.User {
	t.Helper()
	user := &model.User{
		UID:       uid,
		Name:      name,
		Email:     name + "@example.com",
		AvatarURL: "https://avatars.githubusercontent.com/u/123",
	}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// UPSERT
// =========================================================================

func TestUserUpsert_NewUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{UID: "github:12345", Name: "Omar", Email: "omar@example.com"}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if user.ID == "" {
		t.Error("Upsert() did not set user.ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("Upsert() did not set timestamps")
	}
}

func TestUserUpsert_ExistingUser_UpdatesProfile(t *testing.T) {
	db := newTestDB(t)
	first := createTestUser(t, db, "github:7", "layla")

	again := &model.User{UID: "github:7", Name: "Layla H.", Email: "layla@new.example", AvatarURL: "https://a/new"}
	if err := db.Upsert(context.Background(), again); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("Upsert() changed ID: %s → %s", first.ID, again.ID)
	}

	got, err := db.GetUserByID(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Name != "Layla H." || got.Email != "layla@new.example" || got.AvatarURL != "https://a/new" {
		t.Errorf("profile not refreshed: %+v", got)
	}
}

func TestUserUpsert_DoesNotChangeCreatedAt(t *testing.T) {
	db := newTestDB(t)
	first := createTestUser(t, db, "github:8", "karim")

	time.Sleep(5 * time.Millisecond)
	again := &model.User{UID: "github:8", Name: "karim"}
	if err := db.Upsert(context.Background(), again); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if !again.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed: %v → %v", first.CreatedAt, again.CreatedAt)
	}
	if !again.UpdatedAt.After(first.UpdatedAt) {
		t.Error("UpdatedAt should move forward")
	}
}

func TestUserUpsert_DerivesDisplayName(t *testing.T) {
	db := newTestDB(t)

	tests := []struct {
		uid, name, email, want string
	}{
		{"local:a", "Sara", "sara@example.com", "Sara"},
		{"local:b", "", "nour.eldin@example.com", "nour.eldin"},
		{"local:c", "", "", "User"},
	}
	for _, tt := range tests {
		u := &model.User{UID: tt.uid, Name: tt.name, Email: tt.email}
		if err := db.Upsert(context.Background(), u); err != nil {
			t.Fatalf("Upsert(%s) error = %v", tt.uid, err)
		}
		got, _ := db.GetUserByUID(context.Background(), tt.uid)
		if got.Name != tt.want {
			t.Errorf("%s: name = %q, want %q", tt.uid, got.Name, tt.want)
		}
	}
}

func TestUserUpsert_RequiresUID(t *testing.T) {
	db := newTestDB(t)
	err := db.Upsert(context.Background(), &model.User{Name: "nobody"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Upsert() without UID error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// GET
// =========================================================================

func TestUserGet(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "github:99", "yasmin")

	byID, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	byUID, err := db.GetUserByUID(context.Background(), "github:99")
	if err != nil {
		t.Fatalf("GetUserByUID() error = %v", err)
	}
	if byID.ID != byUID.ID || byID.UID != "github:99" || byID.Email != "yasmin@example.com" {
		t.Errorf("lookups disagree: %+v vs %+v", byID, byUID)
	}
}

func TestUserGet_NotFound(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.GetUserByID(context.Background(), "nonexistent"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetUserByUID(context.Background(), "github:0"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByUID() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// CREDENTIALS
// =========================================================================

func TestCredentials(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	c := &model.Credential{UID: "local:1", Email: "  Sara@Example.com ", Name: "Sara", PasswordHash: "$2a$04$hash"}
	if err := db.CreateCredential(ctx, c); err != nil {
		t.Fatalf("CreateCredential() error = %v", err)
	}
	if c.Email != "sara@example.com" {
		t.Errorf("email not normalised: %q", c.Email)
	}

	got, err := db.GetCredentialByEmail(ctx, "SARA@example.com")
	if err != nil {
		t.Fatalf("GetCredentialByEmail() error = %v", err)
	}
	if got.UID != "local:1" || got.PasswordHash != "$2a$04$hash" || got.Name != "Sara" {
		t.Errorf("credential = %+v", got)
	}

	dup := &model.Credential{UID: "local:2", Email: "sara@example.com", PasswordHash: "x"}
	if err := db.CreateCredential(ctx, dup); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate email error = %v, want ErrConflict", err)
	}

	if err := db.UpdatePassword(ctx, "local:1", "$2a$04$new"); err != nil {
		t.Fatalf("UpdatePassword() error = %v", err)
	}
	got, _ = db.GetCredentialByUID(ctx, "local:1")
	if got.PasswordHash != "$2a$04$new" {
		t.Errorf("hash = %q after update", got.PasswordHash)
	}

	if err := db.UpdatePassword(ctx, "local:missing", "x"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdatePassword(missing) error = %v, want ErrNotFound", err)
	}
	if _, err := db.GetCredentialByEmail(ctx, "nobody@example.com"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetCredentialByEmail(missing) error = %v, want ErrNotFound", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}

	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info('saved_analyses') WHERE name = 'report_content'`,
	).Scan(&count)
	if err != nil {
		t.Fatalf("querying table info: %v", err)
	}
	if count != 1 {
		t.Errorf("report_content column count = %d, want 1", count)
	}
}
