package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.draw/pkg/proto"
)

type recordingHandler struct {
	mu     sync.Mutex
	byRoom map[string][]string
	total  int
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{byRoom: make(map[string][]string)}
}

func (h *recordingHandler) Handle(ctx context.Context, evt *proto.UpstreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byRoom[evt.RoomKey] = append(h.byRoom[evt.RoomKey], evt.ConnID)
	h.total++
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

func encode(t *testing.T, evt proto.UpstreamEvent) []byte {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return data
}

func TestShardForIsStable(t *testing.T) {
	for _, key := range []string{"room-1", "room-2", "abc", ""} {
		first := shardFor(key, 16)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, shardFor(key, 16))
		}
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 16)
	}
}

func TestEventSubscriber_ShardKey(t *testing.T) {
	s := NewEventSubscriber(nil, newRecordingHandler(), SubscriberConfig{
		RoomResolver: func(connID string) (string, bool) {
			if connID == "c1" {
				return "r1", true
			}
			return "", false
		},
	})

	assert.Equal(t, "r9", s.shardKey(&proto.UpstreamEvent{RoomKey: "r9", ConnID: "c1"}))
	assert.Equal(t, "r1", s.shardKey(&proto.UpstreamEvent{ConnID: "c1"}))
	assert.Equal(t, "c2", s.shardKey(&proto.UpstreamEvent{ConnID: "c2"}))
}

func TestEventSubscriber_PreservesPerRoomOrder(t *testing.T) {
	h := newRecordingHandler()
	s := NewEventSubscriber(nil, h, SubscriberConfig{WorkerCount: 4, BufferSize: 256})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.startWorkers(ctx)

	const perRoom = 50
	rooms := []string{"r1", "r2", "r3", "r4", "r5"}
	for i := 0; i < perRoom; i++ {
		for _, roomKey := range rooms {
			s.dispatch(encode(t, proto.UpstreamEvent{Event: proto.EventDrawing, RoomKey: roomKey, ConnID: fmt.Sprint(i)}))
		}
	}

	require.Eventually(t, func() bool { return h.count() == perRoom*len(rooms) }, 2*time.Second, 10*time.Millisecond)

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, roomKey := range rooms {
		got := h.byRoom[roomKey]
		require.Len(t, got, perRoom)
		for i, connID := range got {
			assert.Equal(t, fmt.Sprint(i), connID, "room %s out of order", roomKey)
		}
	}

	cur, capacity := s.GetBufferUsage()
	assert.Equal(t, 0, cur)
	assert.Equal(t, 4*256, capacity)
}

func TestEventSubscriber_DropsInvalidAndAfterStop(t *testing.T) {
	h := newRecordingHandler()
	s := NewEventSubscriber(nil, h, SubscriberConfig{WorkerCount: 2, BufferSize: 8})

	s.startWorkers(context.Background())
	s.dispatch([]byte(`{not json`))
	require.NoError(t, s.Stop())

	// 停止后投递被忽略，不会 panic
	s.dispatch(encode(t, proto.UpstreamEvent{Event: proto.EventClear, RoomKey: "r1"}))
	assert.Equal(t, 0, h.count())

	cur, capacity := s.GetBufferUsage()
	assert.Equal(t, 0, cur)
	assert.Equal(t, 0, capacity)
}
