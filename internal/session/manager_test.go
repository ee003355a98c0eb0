package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/antoniostano/guesser/internal/game"
	"github.com/antoniostano/guesser/internal/gateway"
)

func testFactory(id string) *game.Game {
	return game.New(id, gateway.NewMockGateway(), game.Options{Logger: zerolog.Nop()})
}

func TestManagerGetOrCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute, testFactory)
	s, created := m.GetOrCreate("s1")
	if !created {
		t.Fatalf("first GetOrCreate should create")
	}
	if s.ID != "s1" || s.Status != StatusActive || s.Game == nil {
		t.Fatalf("unexpected session state: %+v", s)
	}

	again, created := m.GetOrCreate("s1")
	if created {
		t.Fatalf("second GetOrCreate should reuse the session")
	}
	if again.Game != s.Game {
		t.Fatalf("GetOrCreate returned a different game for the same id")
	}

	got, err := m.Get("s1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Game != s.Game {
		t.Fatalf("Get() returned a different game")
	}

	ended, err := m.End("s1")
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if _, err := m.Get("s1"); err != ErrNotFound {
		t.Fatalf("Get() after End error = %v, want ErrNotFound", err)
	}
	if _, err := m.End("s1"); err != ErrNotFound {
		t.Fatalf("End() twice error = %v, want ErrNotFound", err)
	}
}

func TestManagerEmptyIDUsesDefault(t *testing.T) {
	m := NewManager(time.Minute, testFactory)
	s, _ := m.GetOrCreate("  ")
	if s.ID != DefaultID {
		t.Fatalf("ID = %q, want %q", s.ID, DefaultID)
	}
	if _, err := m.Get(""); err != nil {
		t.Fatalf("Get(\"\") error = %v", err)
	}
	if NewID() == NewID() {
		t.Fatalf("NewID() should be random")
	}
}

func TestManagerSessionsAreIsolated(t *testing.T) {
	m := NewManager(time.Minute, testFactory)
	a, _ := m.GetOrCreate("a")
	b, _ := m.GetOrCreate("b")
	ctx := context.Background()

	if _, err := a.Game.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := b.Game.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := a.Game.Submit(ctx, "is it alive?"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if a.Game.TurnCount() != 1 || b.Game.TurnCount() != 0 {
		t.Fatalf("turn counts leaked: a=%d b=%d", a.Game.TurnCount(), b.Game.TurnCount())
	}
	if m.ActiveCount() != 2 {
		t.Fatalf("ActiveCount() = %d, want 2", m.ActiveCount())
	}
}

func TestManagerConcurrentGetOrCreate(t *testing.T) {
	m := NewManager(time.Minute, testFactory)
	var wg sync.WaitGroup
	games := make(chan *game.Game, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, _ := m.GetOrCreate("shared")
			games <- s.Game
		}()
	}
	wg.Wait()
	close(games)

	var first *game.Game
	for g := range games {
		if first == nil {
			first = g
		}
		if g != first {
			t.Fatalf("concurrent GetOrCreate produced two games for one id")
		}
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30*time.Millisecond, testFactory)
	m.GetOrCreate("s1")

	var mu sync.Mutex
	var expired []string
	m.SetExpireHook(func(s *Session) {
		mu.Lock()
		defer mu.Unlock()
		expired = append(expired, s.ID)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	if _, err := m.Get("s1"); err != ErrNotFound {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != "s1" {
		t.Fatalf("expired = %v, want [s1]", expired)
	}
}

func TestManagerDefaultSessionNeverExpires(t *testing.T) {
	m := NewManager(time.Nanosecond, testFactory)
	def, _ := m.GetOrCreate("")
	m.GetOrCreate("s1")
	time.Sleep(time.Millisecond)

	m.expireInactive()

	got, err := m.Get("")
	if err != nil {
		t.Fatalf("Get(default) after expiry error = %v", err)
	}
	if got.Game != def.Game {
		t.Fatalf("default session was replaced")
	}
	if _, err := m.Get("s1"); err != ErrNotFound {
		t.Fatalf("Get(s1) error = %v, want ErrNotFound", err)
	}

	if _, err := m.End(DefaultID); err != nil {
		t.Fatalf("End(default) error = %v", err)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}
}

func TestManagerReleaseHookRunsOnEndAndExpiry(t *testing.T) {
	m := NewManager(time.Nanosecond, testFactory)
	var released []string
	m.SetReleaseHook(func(s *Session) {
		if s.Status != StatusEnded {
			t.Errorf("released session %s has status %q", s.ID, s.Status)
		}
		released = append(released, s.ID)
	})

	m.GetOrCreate("ended")
	m.GetOrCreate("idle")
	if _, err := m.End("ended"); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	time.Sleep(time.Millisecond)
	m.expireInactive()

	if len(released) != 2 || released[0] != "ended" || released[1] != "idle" {
		t.Fatalf("released = %v, want [ended idle]", released)
	}
}
