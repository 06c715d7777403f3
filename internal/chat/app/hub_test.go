package app

import (
	"testing"
	"time"

	"task_chat_service/internal/chat/domain"
	"task_chat_service/pkg/config"
	"task_chat_service/pkg/logger"
	"task_chat_service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWSConfig() config.WSConfig {
	return config.WSConfig{
		PingInterval:   time.Minute,
		WriteWait:      time.Second,
		SendBuffer:     16,
		MaxMessageSize: 4096,
		EventRate:      100,
		EventBurst:     100,
	}
}

func newTestClient(h *Hub, userID string, cfg config.WSConfig) *Client {
	c := NewClient(newFakeConn(), Identity{UserID: userID, FirstName: userID}, cfg)
	h.Register(c)
	h.Join(domain.UserGroup(userID), c)
	return c
}

func TestHub_EmitExcludesConnection(t *testing.T) {
	logger.SetNewNop()
	h := NewHub()
	a := newTestClient(h, "A", testWSConfig())
	b := newTestClient(h, "B", testWSConfig())
	outsider := newTestClient(h, "Z", testWSConfig())
	h.Join("room-1", a)
	h.Join("room-1", b)

	n := h.Emit("room-1", []byte(`{"action":"message"}`), a.ID)

	assert.Equal(t, 1, n)
	assert.Len(t, a.send, 0)
	assert.Len(t, b.send, 1)
	assert.Len(t, outsider.send, 0)
	assert.True(t, h.InGroup("room-1", a))
	assert.False(t, h.InGroup("room-1", outsider))
}

// 同一個 user 多裝置都會收到 user_<id>
func TestHub_UserGroupReachesEveryDevice(t *testing.T) {
	logger.SetNewNop()
	h := NewHub()
	phone := newTestClient(h, "A", testWSConfig())
	tablet := newTestClient(h, "A", testWSConfig())

	n := h.Emit(domain.UserGroup("A"), []byte(`{"action":"unread_count"}`), "")

	assert.Equal(t, 2, n)
	assert.Len(t, phone.send, 1)
	assert.Len(t, tablet.send, 1)
	assert.Equal(t, 2, h.Count())
}

func TestHub_UnregisterReturnsRooms(t *testing.T) {
	logger.SetNewNop()
	h := NewHub()
	c := newTestClient(h, "A", testWSConfig())
	h.Join("room-1", c)
	h.Join("room-2", c)
	h.Leave("room-2", c)
	h.Join("room-3", c)

	rooms := h.Unregister(c)

	assert.ElementsMatch(t, []string{"room-1", "room-3"}, rooms)
	assert.Equal(t, 0, h.Count())
	assert.False(t, h.InGroup("room-1", c))
	assert.Equal(t, 0, h.Emit("room-1", []byte("x"), ""))
}

func TestHub_JoinIgnoresUnregisteredClient(t *testing.T) {
	h := NewHub()
	c := NewClient(newFakeConn(), Identity{UserID: "A"}, testWSConfig())

	h.Join("room-1", c)

	assert.False(t, h.InGroup("room-1", c))
}

func TestHub_EmitAll(t *testing.T) {
	logger.SetNewNop()
	h := NewHub()
	a := newTestClient(h, "A", testWSConfig())
	b := newTestClient(h, "B", testWSConfig())

	n := h.EmitAll([]byte(`{"action":"user_online"}`), b.ID)

	assert.Equal(t, 1, n)
	assert.Len(t, a.send, 1)
	assert.Len(t, b.send, 0)
}

// buffer 滿了直接斷掉，不阻塞其他人
func TestHub_SlowClientDropped(t *testing.T) {
	logger.SetNewNop()
	cfg := testWSConfig()
	cfg.SendBuffer = 1
	h := NewHub()
	slow := newTestClient(h, "A", cfg)
	fast := newTestClient(h, "B", testWSConfig())
	h.Join("room-1", slow)
	h.Join("room-1", fast)
	before := testutil.ToFloat64(metrics.SlowClientDrops)

	assert.Equal(t, 2, h.Emit("room-1", []byte("1"), ""))
	assert.Equal(t, 1, h.Emit("room-1", []byte("2"), ""))
	assert.Equal(t, 1, h.Emit("room-1", []byte("3"), ""))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SlowClientDrops))
	assert.Len(t, fast.send, 3)

	// 已關閉的 send 只剩第一筆
	got := [][]byte{}
	for data := range slow.send {
		got = append(got, data)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "1", string(got[0]))
	assert.False(t, slow.Enqueue([]byte("4")))
}

func TestHub_CloseAll(t *testing.T) {
	logger.SetNewNop()
	h := NewHub()
	a := newTestClient(h, "A", testWSConfig())

	h.CloseAll()

	_, ok := <-a.send
	assert.False(t, ok)
	assert.False(t, a.Enqueue([]byte("late")))
}
