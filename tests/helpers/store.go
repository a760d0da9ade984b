// Package helpers provides shared test fixtures.
package helpers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fabiobrito-bit/local-pro-sites-platform/domain"
	"github.com/fabiobrito-bit/local-pro-sites-platform/store"
)

// NewTestStore creates an in-memory sqlite store that is closed with
// the test.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// SeedClientAndWebsite inserts a client profile and a website owned by
// it, returning their ids.
func SeedClientAndWebsite(t *testing.T, ctx context.Context, s store.Store, clientID, websiteID string) {
	t.Helper()

	err := s.CreateClientProfile(ctx, &domain.ClientProfile{
		ID:           clientID,
		BusinessName: "Bakkerij Jansen",
		PhoneNumber:  "+31 20 123 4567",
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed client profile: %v", err)
	}

	err = s.CreateWebsite(ctx, &domain.Website{
		ID:        websiteID,
		ClientID:  clientID,
		Title:     "Bakkerij Jansen",
		URL:       "https://bakkerij-jansen.example",
		Status:    "active",
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed website: %v", err)
	}
}

// SeedSection inserts a published content section at version 1.
func SeedSection(t *testing.T, ctx context.Context, s store.Store, websiteID, section string, content json.RawMessage) {
	t.Helper()

	err := s.InsertSectionContent(ctx, &domain.WebsiteContent{
		ID:          websiteID + "-" + section,
		WebsiteID:   websiteID,
		Section:     section,
		ContentType: "json",
		Content:     content,
		Version:     1,
		Published:   true,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to seed section %s: %v", section, err)
	}
}
