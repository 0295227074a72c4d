package session

import (
	"context"
	"errors"
	"testing"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/testutil"
	"github.com/google/uuid"
)

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(db.Pool, log.NewNop())

	host, err := agent.NewStore(db.Pool, log.NewNop()).Create(ctx, &agent.Agent{
		Name:           "Sage",
		TopicExpertise: "astronomy",
		Visibility:     "public",
		CreatorID:      "user-a",
	})
	if err != nil {
		t.Fatalf("creating agent: %v", err)
	}

	t.Run("message ordering", func(t *testing.T) {
		sess, err := store.Create(ctx, "user-a", "", host.ID)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if sess.Title != DefaultTitle {
			t.Errorf("title = %q, want %q", sess.Title, DefaultTitle)
		}

		for _, m := range []struct{ role, content string }{
			{RoleUser, "How far is Saturn?"},
			{RoleAssistant, "About 1.4 billion kilometers."},
			{RoleUser, "And Neptune?"},
		} {
			if _, err := store.AddMessage(ctx, sess.ID, m.role, m.content); err != nil {
				t.Fatalf("AddMessage(%q) error: %v", m.content, err)
			}
		}

		messages, err := store.Messages(ctx, sess.ID, 0)
		if err != nil {
			t.Fatalf("Messages() error: %v", err)
		}
		if len(messages) != 3 {
			t.Fatalf("len(messages) = %d, want 3", len(messages))
		}
		for i, m := range messages {
			if m.SequenceNumber != int32(i+1) {
				t.Errorf("messages[%d].SequenceNumber = %d, want %d", i, m.SequenceNumber, i+1)
			}
		}
		if messages[1].Role != RoleAssistant {
			t.Errorf("messages[1].Role = %q, want assistant", messages[1].Role)
		}

		reloaded, err := store.Get(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if reloaded.MessageCount != 3 {
			t.Errorf("MessageCount = %d, want 3", reloaded.MessageCount)
		}
	})

	t.Run("ownership", func(t *testing.T) {
		sess, err := store.Create(ctx, "user-a", "", host.ID)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}

		if _, err := store.GetOwned(ctx, sess.ID, "user-b", ""); !errors.Is(err, ErrNotOwner) {
			t.Errorf("GetOwned() as stranger = %v, want ErrNotOwner", err)
		}
		if err := store.Delete(ctx, sess.ID, "user-b", ""); !errors.Is(err, ErrNotOwner) {
			t.Errorf("Delete() as stranger = %v, want ErrNotOwner", err)
		}
		if _, err := store.GetOwned(ctx, sess.ID, "user-a", ""); err != nil {
			t.Errorf("GetOwned() as owner error: %v", err)
		}
	})

	t.Run("guest session", func(t *testing.T) {
		sess, err := store.Create(ctx, "", "visitor-9", host.ID)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if sess.UserID != "" || sess.VisitorID != "visitor-9" {
			t.Errorf("owner = (%q, %q), want guest visitor-9", sess.UserID, sess.VisitorID)
		}
		if _, err := store.GetOwned(ctx, sess.ID, "", "visitor-9"); err != nil {
			t.Errorf("GetOwned() as visitor error: %v", err)
		}
	})

	t.Run("title set once flag", func(t *testing.T) {
		sess, err := store.Create(ctx, "user-a", "", host.ID)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if sess.TitleGenerated {
			t.Fatal("fresh session already marked titled")
		}
		if err := store.SetTitle(ctx, sess.ID, "Saturn distances"); err != nil {
			t.Fatalf("SetTitle() error: %v", err)
		}
		reloaded, err := store.Get(ctx, sess.ID)
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !reloaded.TitleGenerated || reloaded.Title != "Saturn distances" {
			t.Errorf("after SetTitle: title = %q, generated = %v", reloaded.Title, reloaded.TitleGenerated)
		}
	})

	t.Run("delete cascades messages", func(t *testing.T) {
		sess, err := store.Create(ctx, "user-a", "", host.ID)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if _, err := store.AddMessage(ctx, sess.ID, RoleUser, "hello"); err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}
		if err := store.Delete(ctx, sess.ID, "user-a", ""); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if _, err := store.Get(ctx, sess.ID); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Get() after delete = %v, want ErrSessionNotFound", err)
		}
		var count int
		err = db.Pool.QueryRow(ctx,
			`SELECT count(*) FROM chat_messages WHERE session_id = $1`, sess.ID).Scan(&count)
		if err != nil {
			t.Fatalf("counting messages: %v", err)
		}
		if count != 0 {
			t.Errorf("orphaned messages after delete: %d", count)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		first, err := store.Create(ctx, "user-list", "", host.ID)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		second, err := store.Create(ctx, "user-list", "", host.ID)
		if err != nil {
			t.Fatalf("Create() error: %v", err)
		}
		if _, err := store.AddMessage(ctx, first.ID, RoleUser, "bump"); err != nil {
			t.Fatalf("AddMessage() error: %v", err)
		}

		sessions, err := store.List(ctx, "user-list")
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		if len(sessions) != 2 {
			t.Fatalf("len(sessions) = %d, want 2", len(sessions))
		}
		if sessions[0].ID != first.ID {
			t.Errorf("sessions[0] = %s, want most recently active %s", sessions[0].ID, first.ID)
		}
		_ = second
	})

	t.Run("unknown session", func(t *testing.T) {
		if _, err := store.Get(ctx, uuid.New()); !errors.Is(err, ErrSessionNotFound) {
			t.Errorf("Get(random) = %v, want ErrSessionNotFound", err)
		}
	})
}
