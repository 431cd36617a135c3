package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medicaldate/clinic-portal/internal/core/domain"
	"github.com/medicaldate/clinic-portal/internal/core/ports"
)

// auditor enqueues auth events with the request's origin attached. A nil
// recorder drops them.
type auditor struct {
	recorder ports.AuditRecorder
}

func (a auditor) record(c echo.Context, e domain.AuthEvent) {
	if a.recorder == nil {
		return
	}
	e.RemoteIP = c.RealIP()
	e.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	a.recorder.Enqueue(e)
}

func userOf(s domain.Session) (id, email string) {
	if s.User == nil {
		return "", ""
	}
	return s.User.ID, s.User.Email
}
