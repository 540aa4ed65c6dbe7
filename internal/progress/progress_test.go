// SPDX-License-Identifier: MIT

package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_PublishSubscribe(t *testing.T) {
	tr := NewTracker()
	ch, unsubscribe := tr.Subscribe("track-1:encrypt")
	defer unsubscribe()

	tr.Publish("track-1:encrypt", 10, "deriving_key")

	select {
	case u := <-ch:
		assert.Equal(t, 10, u.Percent)
		assert.Equal(t, "deriving_key", u.Stage)
	case <-time.After(time.Second):
		t.Fatal("expected update, got none")
	}
}

func TestTracker_NoSubscribersDoesNotBlock(t *testing.T) {
	tr := NewTracker()
	tr.Publish("nobody:listening", 50, "midway")
}

func TestTracker_UnsubscribeStopsDelivery(t *testing.T) {
	tr := NewTracker()
	ch, unsubscribe := tr.Subscribe("track-1:decrypt")
	unsubscribe()

	tr.Publish("track-1:decrypt", 100, "done")

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestTracker_MultipleSubscribers(t *testing.T) {
	tr := NewTracker()
	ch1, unsub1 := tr.Subscribe("track-2:encrypt")
	ch2, unsub2 := tr.Subscribe("track-2:encrypt")
	defer unsub1()
	defer unsub2()

	tr.Publish("track-2:encrypt", 90, "finalizing")

	for _, ch := range []<-chan Update{ch1, ch2} {
		select {
		case u := <-ch:
			require.Equal(t, 90, u.Percent)
		case <-time.After(time.Second):
			t.Fatal("expected update on all subscribers")
		}
	}
}
