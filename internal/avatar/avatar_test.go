package avatar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentdeck/agentdeck/internal/log"
	"github.com/agentdeck/agentdeck/internal/usage"
)

type fakeImages struct {
	callCount int
	err       error
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string) ([]byte, error) {
	f.callCount++
	if f.err != nil {
		return nil, f.err
	}
	return []byte{0x89, 0x50, 0x4e, 0x47}, nil
}

type fakeObjects struct {
	putCount int
	lastKey  string
	err      error
}

func (f *fakeObjects) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	f.putCount++
	f.lastKey = key
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example.com/" + key, nil
}

type fakeAgents struct {
	urls map[int64]string
}

func (f *fakeAgents) SetAvatarURL(_ context.Context, id int64, url string) error {
	f.urls[id] = url
	return nil
}

type fakeUsage struct {
	gateErr       error
	gateCalls     int
	chargeCalls   int
	chargedAgent  int64
	chargedPeriod int64
}

func (f *fakeUsage) GateAvatar(_ context.Context, userID string) (*usage.Period, error) {
	f.gateCalls++
	if f.gateErr != nil {
		return nil, f.gateErr
	}
	return &usage.Period{ID: 1, UserID: userID, TokensLimit: 250000, AvatarsLimit: 5}, nil
}

func (f *fakeUsage) ChargeAvatar(_ context.Context, periodID int64, userID string, agentID int64) error {
	f.chargeCalls++
	f.chargedPeriod = periodID
	f.chargedAgent = agentID
	return nil
}

func TestGenerate(t *testing.T) {
	images := &fakeImages{}
	objects := &fakeObjects{}
	agents := &fakeAgents{urls: make(map[int64]string)}
	meter := &fakeUsage{}
	g := NewGenerator(images, objects, agents, meter, log.NewNop())

	url, err := g.Generate(context.Background(), "user-1", 7, "a wise owl")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if !strings.HasPrefix(url, "https://cdn.example.com/avatars/7/") {
		t.Errorf("url = %q", url)
	}
	if agents.urls[7] != url {
		t.Error("agent avatar url not linked")
	}
	if meter.chargeCalls != 1 {
		t.Errorf("charge calls = %d, want 1", meter.chargeCalls)
	}
	if meter.chargedAgent != 7 {
		t.Errorf("charged agent = %d, want 7", meter.chargedAgent)
	}
	if meter.chargedPeriod != 1 {
		t.Errorf("charged period = %d, want 1", meter.chargedPeriod)
	}
}

func TestGenerateGateBlocksImageCall(t *testing.T) {
	images := &fakeImages{}
	meter := &fakeUsage{gateErr: usage.ErrAvatarQuotaExceeded}
	g := NewGenerator(images, &fakeObjects{}, &fakeAgents{urls: map[int64]string{}}, meter, log.NewNop())

	_, err := g.Generate(context.Background(), "user-1", 7, "a wise owl")
	if !errors.Is(err, usage.ErrAvatarQuotaExceeded) {
		t.Fatalf("err = %v, want %v", err, usage.ErrAvatarQuotaExceeded)
	}
	if images.callCount != 0 {
		t.Error("image generated despite exhausted avatar quota")
	}
}

func TestGenerateStorageFailureNotCharged(t *testing.T) {
	objects := &fakeObjects{err: errors.New("bucket unavailable")}
	meter := &fakeUsage{}
	g := NewGenerator(&fakeImages{}, objects, &fakeAgents{urls: map[int64]string{}}, meter, log.NewNop())

	_, err := g.Generate(context.Background(), "user-1", 7, "a wise owl")
	if err == nil {
		t.Fatal("expected storage error")
	}
	if meter.chargeCalls != 0 {
		t.Error("charged despite storage failure")
	}
}

func TestFSStore(t *testing.T) {
	dir := t.TempDir()
	store := NewFSStore(dir)

	path, err := store.Put(context.Background(), "avatars/1/x.png", []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Errorf("path = %q, want under %q", path, dir)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(data) != "img" {
		t.Errorf("stored data = %q", data)
	}
}
