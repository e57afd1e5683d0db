package sessionjwt

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess     = "login_success"
	auditEventLoginFailure     = "login_failure"
	auditEventLoginRateLimited = "login_rate_limited"
	auditEventRotateSuccess    = "rotate_success"
	auditEventRotateRejected   = "rotate_rejected"
	auditEventRotateStranded   = "rotate_stranded"
	auditEventLogout           = "logout"
	auditEventRevokeAll        = "revoke_all"
	auditEventSessionCreated   = "session_created"
	auditEventSessionDestroyed = "session_destroyed"
)

// AuditErrorCode is the stable error label written into audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpiredOrRevoked   AuditErrorCode = "expired_or_revoked"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrCredentialIssue    AuditErrorCode = "credential_issue"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	credentialID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:    e.now().UTC(),
		EventType:    eventType,
		PrincipalID:  principalID,
		CredentialID: credentialID,
		RequestID:    RequestIDFromContext(ctx),
		IP:           clientIPFromContext(ctx),
		Success:      success,
		Metadata:     metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrUnauthenticated):
		return auditErrInvalidToken
	case errors.Is(err, ErrExpiredOrRevoked):
		return auditErrExpiredOrRevoked
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrCredentialIssue):
		return auditErrCredentialIssue
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
