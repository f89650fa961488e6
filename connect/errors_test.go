package connect

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "read tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, tc := range []struct {
		name string
		err  error
		want Kind
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "net timeout", err: fmt.Errorf("dial: %w", timeoutErr{}), want: KindTimeout},
		{name: "noauth", err: errors.New("NOAUTH Authentication required."), want: KindAuthRejected},
		{name: "wrongpass", err: errors.New("WRONGPASS invalid username-password pair or user is disabled."), want: KindAuthRejected},
		{name: "tls record", err: tls.RecordHeaderError{Msg: "first record does not look like a TLS handshake"}, want: KindProtocolMismatch},
		{name: "x509", err: errors.New("tls: failed to verify certificate: x509: certificate signed by unknown authority"), want: KindProtocolMismatch},
		{name: "cluster disabled", err: errors.New("ERR This instance has cluster support disabled"), want: KindProtocolMismatch},
		{name: "unknown command", err: errors.New("ERR unknown command 'HELLO'"), want: KindProtocolMismatch},
		{name: "crossslot", err: errors.New("CROSSSLOT Keys in request don't hash to the same slot"), want: KindProtocolMismatch},
		{name: "unsupported client", err: fmt.Errorf("%w: %q", errUnsupportedClient, "jedis"), want: KindProtocolMismatch},
		{name: "refused", err: errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), want: KindUnreachable},
		{name: "eof", err: io.EOF, want: KindUnreachable},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := classify(ctx, "op", tc.err)
			require.Equal(t, tc.want, got.Kind)
			require.ErrorIs(t, got, tc.err)
		})
	}
}

func TestClassifyExpiredContextIsTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	require.Equal(t, KindTimeout, classify(ctx, "op", io.EOF).Kind)
}

func TestClassifyKeepsConnectionError(t *testing.T) {
	t.Parallel()

	orig := &ConnectionError{Kind: KindAuthRejected, Message: "m"}
	require.Same(t, orig, classify(context.Background(), "op", fmt.Errorf("wrap: %w", orig)))
}
