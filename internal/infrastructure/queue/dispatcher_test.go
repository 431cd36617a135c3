package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

type recordingService struct {
	mu     sync.Mutex
	byUser map[string][]domain.AuthEventType
	gate   chan struct{}
}

func (s *recordingService) Record(_ context.Context, e domain.AuthEvent) error {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUser[e.UserID] = append(s.byUser[e.UserID], e.Type)
	return nil
}

func TestDispatcher_PreservesPerUserOrder(t *testing.T) {
	svc := &recordingService{byUser: map[string][]domain.AuthEventType{}}
	d := NewDispatcher(4, svc, zerolog.Nop())
	d.Start(context.Background())

	sequence := []domain.AuthEventType{domain.EventLogin, domain.EventRefresh, domain.EventRefresh, domain.EventLogout}
	users := []string{"usr_a", "usr_b", "usr_c"}
	for _, typ := range sequence {
		for _, u := range users {
			d.Enqueue(domain.AuthEvent{Type: typ, UserID: u})
		}
	}
	d.Stop()

	for _, u := range users {
		got := svc.byUser[u]
		if len(got) != len(sequence) {
			t.Fatalf("user %s: expected %d events, got %d", u, len(sequence), len(got))
		}
		for i := range sequence {
			if got[i] != sequence[i] {
				t.Fatalf("user %s: event %d out of order: %v", u, i, got)
			}
		}
	}
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	svc := &recordingService{byUser: map[string][]domain.AuthEventType{}, gate: make(chan struct{})}
	d := NewDispatcher(1, svc, zerolog.Nop())
	d.Start(context.Background())

	for i := 0; i < channelBuffer+50; i++ {
		d.Enqueue(domain.AuthEvent{Type: domain.EventLogin, UserID: "usr_a"})
	}

	close(svc.gate)
	d.Stop()

	if got := len(svc.byUser["usr_a"]); got > channelBuffer+1 || got == 0 {
		t.Fatalf("expected overflow to be dropped, recorded %d", got)
	}
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	svc := &recordingService{byUser: map[string][]domain.AuthEventType{}}
	d := NewDispatcher(2, svc, zerolog.Nop())
	d.Start(context.Background())
	d.Stop()
	d.Stop()

	d.Enqueue(domain.AuthEvent{Type: domain.EventLogin, UserID: "usr_a"})
	if len(svc.byUser) != 0 {
		t.Fatalf("expected events after stop to be dropped")
	}
}

func TestDispatcher_ShardIndexStable(t *testing.T) {
	d := NewDispatcher(8, &recordingService{}, zerolog.Nop())
	for _, key := range []string{"usr_a", "usr_b", "", "10.0.0.1"} {
		first := d.shardIndex(key)
		if first < 0 || first >= 8 {
			t.Fatalf("index %d out of range", first)
		}
		if d.shardIndex(key) != first {
			t.Fatalf("shard index not deterministic for %q", key)
		}
	}
}
