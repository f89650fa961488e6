package connect

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a failed connection attempt.
type Kind string

const (
	KindTimeout          Kind = "Timeout"
	KindAuthRejected     Kind = "AuthRejected"
	KindUnreachable      Kind = "Unreachable"
	KindProtocolMismatch Kind = "ProtocolMismatch"
)

// ConnectionError is returned by Connect for every failure.
type ConnectionError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("connect %s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

var errUnsupportedClient = errors.New("unsupported client variant")

var (
	authMarkers = []string{
		"noauth",
		"wrongpass",
		"invalid password",
		"invalid username-password",
		"authentication required",
		"auth failed",
	}
	protocolMarkers = []string{
		"cluster support disabled",
		"unknown command",
		"moved ",
		"crossslot",
		"tls:",
		"x509:",
		"first record does not look like a tls handshake",
		"malformed http response",
		"unsupported protocol",
		"invalid reply",
	}
)

// classify maps err into the closed Kind set. ctx is the connect-scoped
// context; its deadline firing always means Timeout.
func classify(ctx context.Context, message string, err error) *ConnectionError {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}
	return &ConnectionError{Kind: kindOf(ctx, err), Message: message, Err: err}
}

func kindOf(ctx context.Context, err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, errUnsupportedClient) {
		return KindProtocolMismatch
	}
	var recordErr tls.RecordHeaderError
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var invalidCert x509.CertificateInvalidError
	if errors.As(err, &recordErr) || errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) || errors.As(err, &invalidCert) {
		return KindProtocolMismatch
	}

	lower := strings.ToLower(err.Error())
	for _, marker := range authMarkers {
		if strings.Contains(lower, marker) {
			return KindAuthRejected
		}
	}
	for _, marker := range protocolMarkers {
		if strings.Contains(lower, marker) {
			return KindProtocolMismatch
		}
	}
	if strings.Contains(lower, "i/o timeout") {
		return KindTimeout
	}
	return KindUnreachable
}
