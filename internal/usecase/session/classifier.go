package session

import (
	"context"
	"errors"
	"net"
	"strings"

	domain "nailbliss/session/internal/domain/session"
)

// User-facing messages for each classified kind.
const (
	MessageNetworkError       = "Unable to reach the server. Please check your internet connection and try again."
	MessageInvalidCredentials = "Invalid email or password. Please try again."
	MessageEmailNotConfirmed  = "Please confirm your email address before signing in."
	MessageUserAlreadyExists  = "An account with this email already exists. Please sign in instead."
	MessagePermissionDenied   = "You do not have permission to perform this action."
	MessageServerUnavailable  = "The service is temporarily unavailable. Please try again in a few minutes."
	MessageProfileNotFound    = "We could not find your profile. Please try again shortly."
	MessageCancelled          = "The request was cancelled."
	MessageUnknown            = "Something went wrong. Please try again."
)

// ClassifiedError is the only error type surfaced by session actions.
// It carries the classified kind and message and unwraps to the raw cause.
type ClassifiedError struct {
	Op   string
	Info domain.ErrorInfo
}

func (e *ClassifiedError) Error() string {
	return e.Info.Message
}

func (e *ClassifiedError) Unwrap() error {
	return e.Info.Raw
}

// Kind returns the taxonomy value of the error.
func (e *ClassifiedError) Kind() domain.ErrorKind {
	return e.Info.Kind
}

// KindOf returns the classified kind of err, or KindUnknown when err was
// never classified.
func KindOf(err error) domain.ErrorKind {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Info.Kind
	}
	return domain.KindUnknown
}

// Classify maps a raw failure into the error taxonomy. The first matching
// rule wins. Errors that were already classified keep their classification.
func Classify(err error) domain.ErrorInfo {
	if err == nil {
		return domain.ErrorInfo{Kind: domain.KindUnknown, Message: MessageUnknown}
	}
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Info
	}

	info := domain.ErrorInfo{Raw: err}
	message, code, status := describe(err)
	lower := strings.ToLower(message)

	switch {
	case errors.Is(err, context.Canceled):
		info.Kind, info.Message = domain.KindUnknown, MessageCancelled
	case isNetworkError(err):
		info.Kind, info.Message = domain.KindNetworkError, MessageNetworkError
	case code == "invalid_credentials" || strings.Contains(lower, "invalid login credentials") || strings.Contains(lower, "invalid credentials"):
		info.Kind, info.Message = domain.KindInvalidCredentials, MessageInvalidCredentials
	case code == "email_not_confirmed" || strings.Contains(lower, "email not confirmed"):
		info.Kind, info.Message = domain.KindEmailNotConfirmed, MessageEmailNotConfirmed
	case code == "user_already_exists" || code == "email_exists" || errors.Is(err, domain.ErrProfileExists) ||
		strings.Contains(lower, "already registered") || strings.Contains(lower, "already exists"):
		info.Kind, info.Message = domain.KindUserAlreadyExists, MessageUserAlreadyExists
	case code == "42501" || strings.Contains(lower, "row-level security") || strings.Contains(lower, "permission denied"):
		info.Kind, info.Message = domain.KindPermissionDenied, MessagePermissionDenied
	case status == 500 || status == 502 || status == 503 || status == 504:
		info.Kind, info.Message = domain.KindServerUnavailable, MessageServerUnavailable
	case errors.Is(err, domain.ErrProfileNotFound):
		info.Kind, info.Message = domain.KindUnknown, MessageProfileNotFound
	default:
		info.Kind = domain.KindUnknown
		info.Message = strings.TrimSpace(message)
		if info.Message == "" {
			info.Message = MessageUnknown
		}
	}
	return info
}

// describe extracts the human message, service code and HTTP status of err.
// Backend errors contribute their message without the code suffix.
func describe(err error) (message, code string, status int) {
	var backendErr *domain.BackendError
	if errors.As(err, &backendErr) {
		return backendErr.Message, strings.ToLower(backendErr.Code), backendErr.Status
	}
	return err.Error(), "", 0
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrServiceUnreachable) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	message, _, _ := describe(err)
	lower := strings.ToLower(message)
	return strings.Contains(lower, "fetch") || strings.Contains(lower, "network")
}

func disconnects(kind domain.ErrorKind) bool {
	return kind == domain.KindNetworkError || kind == domain.KindServerUnavailable
}

// classify translates err once, logs the raw cause under op, records it as
// the last error and marks the backend disconnected for network-class kinds.
func (m *Manager) classify(err error, op string) *ClassifiedError {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	info := Classify(err)
	m.logger.Error("%s failed (%s): %s", op, info.Kind, m.sanitizer.Sanitize(err.Error()))

	m.update(func(s *domain.AuthState) {
		recorded := info
		s.LastError = &recorded
		if disconnects(info.Kind) {
			s.ConnectionStatus = domain.StatusDisconnected
		}
	})
	return &ClassifiedError{Op: op, Info: info}
}
