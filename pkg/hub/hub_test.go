package hub

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	h := New("test", nil, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

// attach registers a connection-less viewer for exercising the run loop.
func attach(h *Hub, buffer int) *viewer {
	v := &viewer{queue: make(chan Message, buffer)}
	h.register <- v
	return v
}

func recv(t *testing.T, v *viewer) Message {
	t.Helper()
	select {
	case msg := <-v.queue:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return Message{}
	}
}

func assertQuiet(t *testing.T, v *viewer) {
	t.Helper()
	select {
	case msg := <-v.queue:
		t.Fatalf("unexpected message %q", msg.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishReachesViewers(t *testing.T) {
	h := startHub(t)
	a := attach(h, viewerBuffer)
	b := attach(h, viewerBuffer)
	require.Eventually(t, func() bool { return h.ViewerCount() == 2 }, time.Second, time.Millisecond)

	require.NoError(t, h.PublishJSON(map[string]string{"status": "Cooldown"}))

	assert.JSONEq(t, `{"status":"Cooldown"}`, string(recv(t, a).Data))
	assert.JSONEq(t, `{"status":"Cooldown"}`, string(recv(t, b).Data))
}

func TestNewViewerGetsLastMessage(t *testing.T) {
	h := startHub(t)
	_, ok := h.Last()
	assert.False(t, ok)

	require.NoError(t, h.PublishJSON(map[string]int{"countdown": 4}))
	require.Eventually(t, func() bool { _, ok := h.Last(); return ok }, time.Second, time.Millisecond)

	v := attach(h, viewerBuffer)
	msg := recv(t, v)
	assert.False(t, msg.Binary)
	assert.JSONEq(t, `{"countdown":4}`, string(msg.Data))
	assertQuiet(t, v)
}

func TestLatestFrameIsReplayed(t *testing.T) {
	h := startHub(t)
	h.PublishFrame([]byte{0xff, 0xd8, 0x01})
	h.PublishFrame([]byte{0xff, 0xd8, 0x02})
	require.Eventually(t, func() bool {
		last, ok := h.Last()
		return ok && last.Data[2] == 0x02
	}, time.Second, time.Millisecond)

	msg := recv(t, attach(h, viewerBuffer))
	assert.True(t, msg.Binary)
	assert.Equal(t, []byte{0xff, 0xd8, 0x02}, msg.Data)
}

func TestReplayIsNeverDuplicated(t *testing.T) {
	for i := 0; i < 50; i++ {
		h := startHub(t)
		h.Publish(Text([]byte("1")))
		v := attach(h, viewerBuffer)
		h.Publish(Text([]byte("2")))

		first := recv(t, v)
		if string(first.Data) == "1" {
			first = recv(t, v)
		}
		assert.Equal(t, "2", string(first.Data))
		assertQuiet(t, v)
	}
}

func TestWithoutReplay(t *testing.T) {
	h := startHub(t, WithoutReplay())
	early := attach(h, viewerBuffer)
	h.Publish(Text([]byte(`{"id":1}`)))
	assert.Equal(t, `{"id":1}`, string(recv(t, early).Data))

	late := attach(h, viewerBuffer)
	_, ok := h.Last()
	assert.False(t, ok)
	assertQuiet(t, late)

	h.Publish(Text([]byte(`{"id":2}`)))
	assert.Equal(t, `{"id":2}`, string(recv(t, late).Data))
}

func TestUnregisterClosesQueue(t *testing.T) {
	h := startHub(t)
	v := attach(h, viewerBuffer)
	h.unregister <- v

	_, open := <-v.queue
	assert.False(t, open)
	assert.Equal(t, 0, h.ViewerCount())

	// A second unregister of the same viewer is ignored.
	h.unregister <- v
}

func TestSlowViewerDisconnected(t *testing.T) {
	h := startHub(t)
	slow := attach(h, 1)
	require.Eventually(t, func() bool { return h.ViewerCount() == 1 }, time.Second, time.Millisecond)

	h.PublishFrame([]byte("1"))
	h.PublishFrame([]byte("2"))

	require.Eventually(t, func() bool { return h.ViewerCount() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, []byte("1"), recv(t, slow).Data)
	_, open := <-slow.queue
	assert.False(t, open)
}

func TestRunStopDisconnectsViewers(t *testing.T) {
	h := New("stop", nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	v := attach(h, viewerBuffer)
	cancel()
	<-h.done

	_, open := <-v.queue
	assert.False(t, open)
	assert.Equal(t, 0, h.ViewerCount())
}

func TestMessageOpcode(t *testing.T) {
	assert.Equal(t, websocket.TextMessage, Text([]byte("{}")).opcode())
	assert.Equal(t, websocket.BinaryMessage, Frame([]byte{0xff}).opcode())
}
