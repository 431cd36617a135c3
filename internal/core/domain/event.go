package domain

import "time"

// AuthEventType names an entry in the authentication audit trail.
type AuthEventType string

const (
	EventLogin          AuthEventType = "login"
	EventLoginFailed    AuthEventType = "login_failed"
	EventRefresh        AuthEventType = "refresh"
	EventRefreshFailed  AuthEventType = "refresh_failed"
	EventLogout         AuthEventType = "logout"
	EventSessionExpired AuthEventType = "session_expired"
)

// AuthEvent records one authentication-relevant action seen by the gateway.
type AuthEvent struct {
	Type      AuthEventType `json:"type" bson:"type"`
	UserID    string        `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Email     string        `json:"email,omitempty" bson:"email,omitempty"`
	Role      Role          `json:"role,omitempty" bson:"role,omitempty"`
	RemoteIP  string        `json:"remote_ip,omitempty" bson:"remote_ip,omitempty"`
	RequestID string        `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Reason    string        `json:"reason,omitempty" bson:"reason,omitempty"`
	At        time.Time     `json:"at" bson:"at"`
}

// ShardKey picks the value events are ordered by: user first, then the
// remote address for anonymous events.
func (e AuthEvent) ShardKey() string {
	if e.UserID != "" {
		return e.UserID
	}
	if e.Email != "" {
		return e.Email
	}
	return e.RemoteIP
}
