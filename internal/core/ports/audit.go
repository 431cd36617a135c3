package ports

import (
	"context"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
)

// AuditSink persists or forwards one auth event.
type AuditSink interface {
	Write(ctx context.Context, event domain.AuthEvent) error
}

// AuditService records auth events through every configured sink.
type AuditService interface {
	Record(ctx context.Context, event domain.AuthEvent) error
}

// AuditRecorder accepts events from the request path without blocking it.
type AuditRecorder interface {
	Enqueue(event domain.AuthEvent)
}
