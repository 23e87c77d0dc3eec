package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	name  string
	err   error
	sent  int
	title string
}

func (s *stubSender) Send(ctx context.Context, title, message string) error {
	if s.err != nil {
		return s.err
	}
	s.sent++
	s.title = title
	return nil
}

func (s *stubSender) Name() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotify_FansOutToAllSenders(t *testing.T) {
	a := &stubSender{name: "a"}
	b := &stubSender{name: "b"}
	n := NewNotifier([]Sender{a, b}, nil, testLogger())

	err := n.Notify(context.Background(), EventRoundOpen, "title", "msg")
	require.NoError(t, err)
	assert.Equal(t, 1, a.sent)
	assert.Equal(t, 1, b.sent)
	assert.Equal(t, "title", a.title)
}

func TestNotify_EventFilter(t *testing.T) {
	s := &stubSender{name: "a"}
	n := NewNotifier([]Sender{s}, []string{"round_resolved"}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventRoundOpen, "t", "m"))
	assert.Zero(t, s.sent, "filtered events must not reach senders")

	require.NoError(t, n.Notify(context.Background(), EventRoundResolved, "t", "m"))
	assert.Equal(t, 1, s.sent)
}

func TestNotify_OneFailingSenderDoesNotBlockOthers(t *testing.T) {
	bad := &stubSender{name: "bad", err: errors.New("down")}
	good := &stubSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.Notify(context.Background(), EventDigest, "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, 1, good.sent)
}

func TestNotify_NoSendersIsNoop(t *testing.T) {
	n := NewNotifier(nil, nil, testLogger())
	assert.NoError(t, n.Notify(context.Background(), EventRoundOpen, "t", "m"))
}
