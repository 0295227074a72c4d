package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestCreateRequiresOwner(t *testing.T) {
	store := NewStore(nil, nil)

	_, err := store.Create(context.Background(), "", "", 1)
	if !errors.Is(err, ErrNoOwner) {
		t.Fatalf("Create with no owner = %v, want %v", err, ErrNoOwner)
	}
}

func TestOwns(t *testing.T) {
	sess := &Session{ID: uuid.New(), UserID: "user-1"}
	guest := &Session{ID: uuid.New(), VisitorID: "visitor-9"}

	tests := []struct {
		name      string
		sess      *Session
		userID    string
		visitorID string
		want      bool
	}{
		{"owner user", sess, "user-1", "", true},
		{"wrong user", sess, "user-2", "", false},
		{"visitor cannot claim user session", sess, "", "visitor-9", false},
		{"owner visitor", guest, "", "visitor-9", true},
		{"wrong visitor", guest, "", "visitor-1", false},
		{"user cannot claim guest session", guest, "user-1", "", false},
		{"no credentials", sess, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := owns(tt.sess, tt.userID, tt.visitorID); got != tt.want {
				t.Errorf("owns() = %v, want %v", got, tt.want)
			}
		})
	}
}
