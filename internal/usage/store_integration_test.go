package usage

import (
	"context"
	"testing"

	"github.com/agentdeck/agentdeck/internal/agent"
	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/testutil"
	"github.com/agentdeck/agentdeck/internal/tokens"
)

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStore(db.Pool, log.NewNop())

	t.Run("lazy period creation", func(t *testing.T) {
		p, err := store.CurrentPeriod(ctx, "user-a")
		if err != nil {
			t.Fatalf("CurrentPeriod() error: %v", err)
		}
		if p.PlanType != tokens.PlanFree {
			t.Errorf("plan = %q, want free", p.PlanType)
		}
		if p.TokensLimit != 250000 || p.AvatarsLimit != 5 {
			t.Errorf("limits = %d tokens / %d avatars", p.TokensLimit, p.AvatarsLimit)
		}
		if !p.PeriodEnd.After(p.PeriodStart) {
			t.Error("period end not after start")
		}

		again, err := store.CurrentPeriod(ctx, "user-a")
		if err != nil {
			t.Fatalf("second CurrentPeriod() error: %v", err)
		}
		if again.ID != p.ID {
			t.Errorf("second lookup created a new period: %d vs %d", again.ID, p.ID)
		}
	})

	t.Run("charge and audit", func(t *testing.T) {
		p, err := store.CurrentPeriod(ctx, "user-b")
		if err != nil {
			t.Fatalf("CurrentPeriod() error: %v", err)
		}

		records := []Record{
			{UserID: "user-b", TokensUsed: 80, ModelUsed: "gpt-4o-mini", OperationType: OpChatInput},
			{UserID: "user-b", TokensUsed: 40, ModelUsed: "gpt-4o-mini", OperationType: OpChatOutput},
		}
		if err := store.Charge(ctx, p.ID, 120, true, records); err != nil {
			t.Fatalf("Charge() error: %v", err)
		}

		after, err := store.CurrentPeriod(ctx, "user-b")
		if err != nil {
			t.Fatalf("CurrentPeriod() after charge error: %v", err)
		}
		if after.TokensUsed != 120 {
			t.Errorf("TokensUsed = %d, want 120", after.TokensUsed)
		}
		if after.MessageCount != 1 {
			t.Errorf("MessageCount = %d, want 1", after.MessageCount)
		}

		history, err := store.History(ctx, "user-b", 10)
		if err != nil {
			t.Fatalf("History() error: %v", err)
		}
		if len(history) != 2 {
			t.Fatalf("history rows = %d, want 2", len(history))
		}
	})

	t.Run("gate respects stored usage", func(t *testing.T) {
		p, err := store.CurrentPeriod(ctx, "user-c")
		if err != nil {
			t.Fatalf("CurrentPeriod() error: %v", err)
		}
		if err := store.Charge(ctx, p.ID, p.TokensLimit, false, nil); err != nil {
			t.Fatalf("Charge() error: %v", err)
		}

		if _, err := store.GateTokens(ctx, "user-c", 1); err == nil {
			t.Fatal("gate passed on an exhausted period")
		}
	})

	t.Run("plan upgrade", func(t *testing.T) {
		p, err := store.CurrentPeriod(ctx, "user-d")
		if err != nil {
			t.Fatalf("CurrentPeriod() error: %v", err)
		}
		if err := store.Charge(ctx, p.ID, 500, true, nil); err != nil {
			t.Fatalf("Charge() error: %v", err)
		}

		upgraded, err := store.ApplyPlan(ctx, "user-d", tokens.PlanPro)
		if err != nil {
			t.Fatalf("ApplyPlan() error: %v", err)
		}
		if upgraded.ID == p.ID {
			t.Error("upgrade reused the old period row")
		}
		if upgraded.TokensLimit != 10000000 || upgraded.AvatarsLimit != 50 {
			t.Errorf("pro limits = %d / %d", upgraded.TokensLimit, upgraded.AvatarsLimit)
		}
		if upgraded.TokensUsed != 0 {
			t.Errorf("upgrade kept token usage: %d", upgraded.TokensUsed)
		}
		if upgraded.MessageCount != 1 {
			t.Errorf("upgrade lost message count: %d", upgraded.MessageCount)
		}

		current, err := store.CurrentPeriod(ctx, "user-d")
		if err != nil {
			t.Fatalf("CurrentPeriod() after upgrade error: %v", err)
		}
		if current.ID != upgraded.ID {
			t.Errorf("current period = %d, want upgraded %d", current.ID, upgraded.ID)
		}
	})

	t.Run("avatar charge", func(t *testing.T) {
		host, err := agent.NewStore(db.Pool, log.NewNop()).Create(ctx, &agent.Agent{
			Name:           "Painter",
			TopicExpertise: "portraits",
			Visibility:     "private",
			CreatorID:      "user-e",
		})
		if err != nil {
			t.Fatalf("creating agent: %v", err)
		}

		p, err := store.GateAvatar(ctx, "user-e")
		if err != nil {
			t.Fatalf("GateAvatar() error: %v", err)
		}
		if err := store.ChargeAvatar(ctx, p.ID, "user-e", host.ID); err != nil {
			t.Fatalf("ChargeAvatar() error: %v", err)
		}

		after, err := store.CurrentPeriod(ctx, "user-e")
		if err != nil {
			t.Fatalf("CurrentPeriod() error: %v", err)
		}
		if after.AvatarsGenerated != 1 {
			t.Errorf("AvatarsGenerated = %d, want 1", after.AvatarsGenerated)
		}
		if after.TokensUsed != tokens.AvatarCost {
			t.Errorf("TokensUsed = %d, want %d", after.TokensUsed, tokens.AvatarCost)
		}

		history, err := store.History(ctx, "user-e", 10)
		if err != nil {
			t.Fatalf("History() error: %v", err)
		}
		if len(history) != 1 {
			t.Fatalf("history rows = %d, want 1", len(history))
		}
		if history[0].AgentID == nil || *history[0].AgentID != host.ID {
			t.Errorf("audit record agent id = %v, want %d", history[0].AgentID, host.ID)
		}
	})
}
