package usage

import (
	"errors"
	"strings"
	"testing"

	"github.com/agentdeck/agentdeck/internal/tokens"
)

func freePeriod(used int64) *Period {
	limits := tokens.LimitsFor(tokens.PlanFree)
	return &Period{
		ID:           1,
		UserID:       "user-1",
		TokensUsed:   used,
		TokensLimit:  limits.Tokens,
		PlanType:     tokens.PlanFree,
		AvatarsLimit: int32(limits.Avatars),
	}
}

func TestGate(t *testing.T) {
	tests := []struct {
		name     string
		used     int64
		estimate int64
		wantErr  error
	}{
		{"fresh period", 0, 100, nil},
		{"fits exactly", 249900, 100, nil},
		{"at limit", 250000, 1, ErrQuotaExceeded},
		{"over limit", 250100, 1, ErrQuotaExceeded},
		{"message too large", 249950, 100, ErrMessageTooLarge},
		{"zero estimate under limit", 249999, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate(freePeriod(tt.used), tt.estimate)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("gate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("gate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGateAvatar(t *testing.T) {
	p := freePeriod(0)
	if err := gateAvatar(p); err != nil {
		t.Fatalf("gateAvatar on fresh period = %v", err)
	}

	p.AvatarsGenerated = p.AvatarsLimit
	if err := gateAvatar(p); !errors.Is(err, ErrAvatarQuotaExceeded) {
		t.Fatalf("gateAvatar at avatar limit = %v, want %v", err, ErrAvatarQuotaExceeded)
	}

	// Token budget too small for one generation even with avatars left.
	p = freePeriod(p.TokensLimit - tokens.AvatarCost + 1)
	if err := gateAvatar(p); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("gateAvatar with thin budget = %v, want %v", err, ErrMessageTooLarge)
	}
}

func TestQuotaError(t *testing.T) {
	err := gate(freePeriod(250000), 10)

	var qe *QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("gate() = %T, want *QuotaError", err)
	}
	if qe.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", qe.Remaining())
	}
	if !strings.Contains(qe.Error(), "250000") {
		t.Errorf("Error() missing detail: %q", qe.Error())
	}
	if errors.Is(err, ErrMessageTooLarge) {
		t.Error("QuotaExceeded error should not match ErrMessageTooLarge")
	}
}

func TestPeriodRemaining(t *testing.T) {
	p := freePeriod(100000)
	if got := p.Remaining(); got != 150000 {
		t.Errorf("Remaining() = %d, want 150000", got)
	}
	p.TokensUsed = 300000
	if got := p.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
}
