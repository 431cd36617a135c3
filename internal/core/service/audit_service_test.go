package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubAuditSink struct {
	err     error
	written []domain.AuthEvent
}

func (s *stubAuditSink) Write(_ context.Context, e domain.AuthEvent) error {
	if s.err != nil {
		return s.err
	}
	s.written = append(s.written, e)
	return nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestAuditService_FansOutToSinks(t *testing.T) {
	a, b := &stubAuditSink{}, &stubAuditSink{}
	svc := NewAuditService(zerolog.Nop(), a, nil, b)

	err := svc.Record(context.Background(), domain.AuthEvent{Type: domain.EventLogin, UserID: "usr_admin"})
	if err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if len(a.written) != 1 || len(b.written) != 1 {
		t.Fatalf("expected every sink to receive the event, got %d and %d", len(a.written), len(b.written))
	}
	if a.written[0].At.IsZero() {
		t.Fatalf("expected timestamp to be filled in")
	}
}

func TestAuditService_FailingSinkDoesNotStopOthers(t *testing.T) {
	broken := &stubAuditSink{err: errors.New("mongo down")}
	ok := &stubAuditSink{}
	svc := NewAuditService(zerolog.Nop(), broken, ok)

	err := svc.Record(context.Background(), domain.AuthEvent{Type: domain.EventLogout})
	if err == nil {
		t.Fatalf("expected sink error to be reported")
	}
	if len(ok.written) != 1 {
		t.Fatalf("expected healthy sink to receive the event")
	}
}

func TestAuditService_RejectsUntypedEvent(t *testing.T) {
	sink := &stubAuditSink{}
	svc := NewAuditService(zerolog.Nop(), sink)

	if err := svc.Record(context.Background(), domain.AuthEvent{UserID: "u1"}); err == nil {
		t.Fatalf("expected error for event without type")
	}
	if len(sink.written) != 0 {
		t.Fatalf("expected nothing written")
	}
}
