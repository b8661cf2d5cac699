package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"rosey.db.trivia.execute", "rosey.db.trivia.execute", true},
		{"rosey.db.*.execute", "rosey.db.trivia.execute", true},
		{"rosey.db.*.execute", "rosey.db.trivia.status", false},
		{"rosey.db.*.execute", "rosey.db.a.b.execute", false},
		{"rosey.db.>", "rosey.db.trivia.execute", true},
		{"rosey.db.>", "rosey.db", false},
		{"rosey.db.*.execute", "rosey.db.execute", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, subjectMatches(tc.pattern, tc.subject),
			"pattern %q subject %q", tc.pattern, tc.subject)
	}
}

func TestMemoryBus_RequestReply(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	_, err := b.Subscribe("rosey.db.*.execute", func(subject string, data []byte) []byte {
		return append([]byte(subject+":"), data...)
	})
	require.NoError(t, err)

	reply, err := b.Request(context.Background(), "rosey.db.trivia.execute", []byte("ping"))
	require.NoError(t, err)
	assert.Equal(t, "rosey.db.trivia.execute:ping", string(reply))
}

func TestMemoryBus_NoResponder(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	_, err := b.Request(context.Background(), "rosey.db.trivia.execute", nil)
	assert.ErrorIs(t, err, ErrNoResponder)
}

func TestMemoryBus_Unsubscribe(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	sub, err := b.Subscribe("rosey.db.*.execute", func(string, []byte) []byte { return nil })
	require.NoError(t, err)
	require.NoError(t, sub.Unsubscribe())

	_, err = b.Request(context.Background(), "rosey.db.trivia.execute", nil)
	assert.ErrorIs(t, err, ErrNoResponder)
}

func TestMemoryBus_InFlightRequestsOverlap(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	// Both handlers must be inside the callback at once before either
	// replies; a serial dispatcher would deadlock here and hit the deadline.
	barrier := make(chan struct{}, 2)
	_, err := b.Subscribe("rosey.db.*.execute", func(string, []byte) []byte {
		barrier <- struct{}{}
		for len(barrier) < 2 {
			time.Sleep(time.Millisecond)
		}
		return []byte("ok")
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 2)
	for _, tenant := range []string{"trivia", "quotes"} {
		go func(subject string) {
			_, err := b.Request(ctx, subject, nil)
			done <- err
		}("rosey.db." + tenant + ".execute")
	}
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-done)
	}
}

func TestMemoryBus_ContextDeadline(t *testing.T) {
	b := NewMemoryBus()
	defer b.Close()

	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	_, err := b.Subscribe("slow.handler", func(string, []byte) []byte {
		<-block
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = b.Request(ctx, "slow.handler", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
