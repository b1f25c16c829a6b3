//go:build integration

package thread_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/assistant/internal/testutil"
	"github.com/koopa0/assistant/internal/thread"
)

func TestStoreRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := thread.NewStore(tdb.Pool, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	session := 0
	th := &thread.Thread{
		ID:     uuid.New(),
		UserID: "alice",
		Model:  "gpt-5-mini",
		Status: thread.StatusActive,
		Messages: []thread.Message{
			thread.UserMessage("hello"),
			thread.AssistantMessage("hi there"),
		},
		ThinkingItems: []thread.ThinkingItem{
			{Type: thread.ItemToolCall, Payload: `{"query":"weather"}`, SessionIndex: &session, Server: "github", CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := store.Save(ctx, th); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, th.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "alice" || got.Model != "gpt-5-mini" || got.Status != thread.StatusActive {
		t.Errorf("loaded thread = %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(got.Messages))
	}
	if got.Messages[1].Blocks[0].Text != "hi there" {
		t.Errorf("assistant text = %q", got.Messages[1].Blocks[0].Text)
	}
	if len(got.ThinkingItems) != 1 {
		t.Fatalf("thinking items = %d, want 1", len(got.ThinkingItems))
	}
	if got.ThinkingItems[0].SessionIndex == nil || *got.ThinkingItems[0].SessionIndex != 0 {
		t.Errorf("session index = %v, want 0", got.ThinkingItems[0].SessionIndex)
	}

	// Upsert: saving again with new state overwrites, never duplicates.
	th.Status = thread.StatusCompleted
	th.AppendMessage(thread.UserMessage("more"))
	if err := store.Save(ctx, th); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err = store.Get(ctx, th.ID)
	if err != nil {
		t.Fatalf("Get after upsert: %v", err)
	}
	if got.Status != thread.StatusCompleted || len(got.Messages) != 3 {
		t.Errorf("after upsert status = %q messages = %d, want completed/3", got.Status, len(got.Messages))
	}
}

func TestStoreGetUnknownID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := thread.NewStore(tdb.Pool, slog.New(slog.DiscardHandler))
	_, err := store.Get(context.Background(), uuid.New())
	if !errors.Is(err, thread.ErrNotFound) {
		t.Fatalf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}
