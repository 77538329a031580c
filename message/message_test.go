package message_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/heetch/kafkian/message"
)

func TestIsTombstone(t *testing.T) {
	require.True(t, (&message.Message{Key: []byte("k")}).IsTombstone())
	require.False(t, (&message.Message{Value: []byte{}}).IsTombstone(), "an empty value is not a tombstone")
	require.False(t, (&message.Message{Value: []byte("v")}).IsTombstone())
}

// Header allocates the headers map when needed and the last value wins.
func TestHeader(t *testing.T) {
	var msg message.Message
	message.Header("Shoe", "Brogue")(&msg)
	message.Header("Shoe", "Wellington")(&msg)
	message.Header("Hat", "Bowler")(&msg)
	require.Equal(t, map[string]string{"Shoe": "Wellington", "Hat": "Bowler"}, msg.Headers)
}

func TestTimestamp(t *testing.T) {
	t0 := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	var msg message.Message
	message.Timestamp(t0)(&msg)
	require.Equal(t, t0, msg.ProducedAt)
}
