package connect

import (
	"errors"
	"testing"

	"github.com/redis/rueidis/mock"
	"go.uber.org/mock/gomock"
)

func TestDiscardLateSkipsFailedDial(t *testing.T) {
	var typedNil *mock.Client
	// Close on a typed nil client would panic.
	discardLate(dialResult{client: typedNil, err: errors.New("dial tcp: i/o timeout")})
	discardLate(dialResult{})
}

func TestDiscardLateClosesEstablishedClient(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := mock.NewClient(ctrl)
	client.EXPECT().Close().Times(1)

	discardLate(dialResult{client: client})
}
