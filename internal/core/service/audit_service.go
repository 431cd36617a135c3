package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medicaldate/clinic-portal/internal/api/metrics"
	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

type auditService struct {
	sinks []ports.AuditSink
	log   zerolog.Logger
}

// NewAuditService returns an AuditService that writes to every sink.
// Nil sinks are skipped.
func NewAuditService(log zerolog.Logger, sinks ...ports.AuditSink) ports.AuditService {
	kept := make([]ports.AuditSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &auditService{sinks: kept, log: log}
}

// Record writes event to each sink. A failing sink does not stop the
// others; the joined failures are returned for the caller to log.
func (s *auditService) Record(ctx context.Context, event domain.AuthEvent) error {
	if event.Type == "" {
		return fmt.Errorf("record audit event: missing type")
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, event); err != nil {
			metrics.AuditEventsTotal.WithLabelValues(string(event.Type), "failed").Inc()
			errs = append(errs, err)
			continue
		}
		metrics.AuditEventsTotal.WithLabelValues(string(event.Type), "recorded").Inc()
	}

	if len(errs) > 0 {
		return fmt.Errorf("record audit event: %w", errors.Join(errs...))
	}

	s.log.Debug().
		Str("type", string(event.Type)).
		Str("user_id", event.UserID).
		Str("request_id", event.RequestID).
		Msg("audit event recorded")
	return nil
}
