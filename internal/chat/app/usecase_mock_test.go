package app

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sort"
	"sync"
	"time"

	"task_chat_service/internal/chat/domain"
	"task_chat_service/pkg"
	errprocess "task_chat_service/pkg/err"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ---------------------------------------------------------------
// in-memory stores, same contract as the mongo repositories
// ---------------------------------------------------------------

var idSeq struct {
	sync.Mutex
	n uint64
}

// nextID monotonic object id, test order never depends on the clock
func nextID() primitive.ObjectID {
	idSeq.Lock()
	defer idSeq.Unlock()
	idSeq.n++

	var id primitive.ObjectID
	binary.BigEndian.PutUint32(id[0:4], uint32(time.Now().Unix()))
	binary.BigEndian.PutUint64(id[4:12], idSeq.n)
	return id
}

func idLess(a, b primitive.ObjectID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

type memRoomRepo struct {
	mu    sync.Mutex
	rooms map[primitive.ObjectID]*domain.ChatRoom
	keys  map[string]primitive.ObjectID
	msgs  *memMessageRepo

	creates      int
	incrementErr error
}

func newMemRoomRepo(msgs *memMessageRepo) *memRoomRepo {
	return &memRoomRepo{
		rooms: make(map[primitive.ObjectID]*domain.ChatRoom),
		keys:  make(map[string]primitive.ObjectID),
		msgs:  msgs,
	}
}

func cloneRoom(r *domain.ChatRoom) *domain.ChatRoom {
	c := *r
	c.Participants = append([]string(nil), r.Participants...)
	c.UnreadCounts = make(map[string]int, len(r.UnreadCounts))
	for k, v := range r.UnreadCounts {
		c.UnreadCounts[k] = v
	}
	if r.LastMessageAt != nil {
		t := *r.LastMessageAt
		c.LastMessageAt = &t
	}
	return &c
}

func (r *memRoomRepo) EnsureIndexes(context.Context) error { return nil }

func (r *memRoomRepo) FindByID(_ context.Context, roomID primitive.ObjectID) (*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return nil, errprocess.NotFound("room %s not found", roomID.Hex())
	}
	return cloneRoom(room), nil
}

func (r *memRoomRepo) FindByKey(_ context.Context, contextID, key string) (*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.keys[contextID+"|"+key]
	if !ok {
		return nil, nil
	}
	return cloneRoom(r.rooms[id]), nil
}

func (r *memRoomRepo) Create(_ context.Context, room *domain.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := room.ContextID + "|" + room.ParticipantsKey
	if _, ok := r.keys[k]; ok {
		return errprocess.Conflict("room already exists")
	}
	if room.ID.IsZero() {
		room.ID = nextID()
	}
	if room.UnreadCounts == nil {
		room.UnreadCounts = map[string]int{}
	}
	r.rooms[room.ID] = cloneRoom(room)
	r.keys[k] = room.ID
	r.creates++
	return nil
}

func (r *memRoomRepo) ListForUser(_ context.Context, userID string, limit, skip int64) ([]domain.RoomWithLastMessage, error) {
	r.mu.Lock()
	rooms := make([]*domain.ChatRoom, 0)
	for _, room := range r.rooms {
		if room.IsParticipant(userID) {
			rooms = append(rooms, cloneRoom(room))
		}
	}
	r.mu.Unlock()

	sort.Slice(rooms, func(i, j int) bool {
		a, b := rooms[i].LastMessageAt, rooms[j].LastMessageAt
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.After(*b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return idLess(rooms[j].ID, rooms[i].ID)
	})

	if skip > int64(len(rooms)) {
		skip = int64(len(rooms))
	}
	rooms = rooms[skip:]
	if limit > 0 && limit < int64(len(rooms)) {
		rooms = rooms[:limit]
	}

	rows := make([]domain.RoomWithLastMessage, 0, len(rooms))
	for _, room := range rooms {
		row := domain.RoomWithLastMessage{ChatRoom: *room}
		if r.msgs != nil {
			if last, _ := r.msgs.ListBefore(context.Background(), room.ID, 1, nil); len(last) > 0 {
				row.LastMessage = &last[0]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *memRoomRepo) IncrementUnread(_ context.Context, roomID primitive.ObjectID, senderID string, participants []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.incrementErr != nil {
		return r.incrementErr
	}
	room, ok := r.rooms[roomID]
	if !ok {
		return errprocess.NotFound("room %s not found", roomID.Hex())
	}
	for _, p := range participants {
		if p != senderID {
			room.UnreadCounts[p]++
		}
	}
	room.LastMessageAt = &at
	room.UpdatedAt = at
	return nil
}

func (r *memRoomRepo) ResetUnread(_ context.Context, roomID primitive.ObjectID, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return errprocess.NotFound("room %s not found", roomID.Hex())
	}
	room.UnreadCounts[userID] = 0
	room.UpdatedAt = at
	return nil
}

func (r *memRoomRepo) CountUnreadRooms(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, room := range r.rooms {
		if room.IsParticipant(userID) && room.UnreadCounts[userID] > 0 {
			n++
		}
	}
	return n, nil
}

func (r *memRoomRepo) ListIDsForUser(_ context.Context, userID string) ([]primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := []primitive.ObjectID{}
	for id, room := range r.rooms {
		if room.IsParticipant(userID) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memRoomRepo) FindUpdatedSince(_ context.Context, userID string, since time.Time) ([]domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.ChatRoom{}
	for _, room := range r.rooms {
		if room.IsParticipant(userID) && room.UpdatedAt.After(since) {
			out = append(out, *cloneRoom(room))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// unread of user in room, test helper
func (r *memRoomRepo) unread(roomID primitive.ObjectID, userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[roomID].UnreadCounts[userID]
}

func (r *memRoomRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

type memMessageRepo struct {
	mu   sync.Mutex
	msgs []*domain.ChatMessage
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{}
}

func cloneMessage(m *domain.ChatMessage) domain.ChatMessage {
	c := *m
	c.ReadBy = append([]string(nil), m.ReadBy...)
	return c
}

func (r *memMessageRepo) EnsureIndexes(context.Context) error { return nil }

func (r *memMessageRepo) Insert(_ context.Context, msg *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ClientID != "" {
		for _, m := range r.msgs {
			if m.RoomID == msg.RoomID && m.SenderID == msg.SenderID && m.ClientID == msg.ClientID {
				return errprocess.Conflict("message client_id %s already exists", msg.ClientID)
			}
		}
	}
	if msg.ID.IsZero() {
		msg.ID = nextID()
	}
	c := cloneMessage(msg)
	r.msgs = append(r.msgs, &c)
	return nil
}

func (r *memMessageRepo) FindByID(_ context.Context, id primitive.ObjectID) (*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			c := cloneMessage(m)
			return &c, nil
		}
	}
	return nil, errprocess.NotFound("message %s not found", id.Hex())
}

func (r *memMessageRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[primitive.ObjectID]domain.ChatMessage, len(ids))
	for _, id := range ids {
		for _, m := range r.msgs {
			if m.ID == id {
				out[id] = cloneMessage(m)
			}
		}
	}
	return out, nil
}

func (r *memMessageRepo) FindByClientID(_ context.Context, roomID primitive.ObjectID, senderID, clientID string) (*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.RoomID == roomID && m.SenderID == senderID && m.ClientID == clientID {
			c := cloneMessage(m)
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memMessageRepo) DeleteByID(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.msgs {
		if m.ID == id {
			r.msgs = append(r.msgs[:i], r.msgs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memMessageRepo) ListBefore(_ context.Context, roomID primitive.ObjectID, limit int64, before *primitive.ObjectID) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.ChatMessage{}
	for i := len(r.msgs) - 1; i >= 0; i-- {
		m := r.msgs[i]
		if m.RoomID != roomID {
			continue
		}
		if before != nil && !idLess(m.ID, *before) {
			continue
		}
		out = append(out, cloneMessage(m))
		if limit > 0 && int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *memMessageRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, status domain.MessageStatus, at time.Time) (*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.ID == id {
			m.Status = status
			m.UpdatedAt = at
			if status == domain.StatusSeen {
				m.SeenAt = &at
			}
			c := cloneMessage(m)
			return &c, nil
		}
	}
	return nil, errprocess.NotFound("message %s not found", id.Hex())
}

func (r *memMessageRepo) MarkRoomRead(_ context.Context, roomID primitive.ObjectID, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.msgs {
		if m.RoomID == roomID && !pkg.Contains(m.ReadBy, userID) {
			m.ReadBy = append(m.ReadBy, userID)
			m.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (r *memMessageRepo) FindUpdatedSince(_ context.Context, roomIDs []primitive.ObjectID, since time.Time) ([]domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in := make(map[primitive.ObjectID]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		in[id] = struct{}{}
	}
	out := []domain.ChatMessage{}
	for _, m := range r.msgs {
		if _, ok := in[m.RoomID]; ok && m.UpdatedAt.After(since) {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (r *memMessageRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

// ---------------------------------------------------------------
// testify mocks
// ---------------------------------------------------------------

// MockRoomRepository Mock RoomRepository
type MockRoomRepository struct {
	mock.Mock
}

// EnsureIndexes mock
func (m *MockRoomRepository) EnsureIndexes(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// FindByID mock find room by room id
func (m *MockRoomRepository) FindByID(ctx context.Context, roomID primitive.ObjectID) (*domain.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByKey mock find room by key
func (m *MockRoomRepository) FindByKey(ctx context.Context, contextID, key string) (*domain.ChatRoom, error) {
	args := m.Called(ctx, contextID, key)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

// Create mock create room
func (m *MockRoomRepository) Create(ctx context.Context, room *domain.ChatRoom) error {
	return m.Called(ctx, room).Error(0)
}

// ListForUser mock
func (m *MockRoomRepository) ListForUser(ctx context.Context, userID string, limit, skip int64) ([]domain.RoomWithLastMessage, error) {
	args := m.Called(ctx, userID, limit, skip)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.RoomWithLastMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// IncrementUnread mock
func (m *MockRoomRepository) IncrementUnread(ctx context.Context, roomID primitive.ObjectID, senderID string, participants []string, at time.Time) error {
	return m.Called(ctx, roomID, senderID, participants, at).Error(0)
}

// ResetUnread mock
func (m *MockRoomRepository) ResetUnread(ctx context.Context, roomID primitive.ObjectID, userID string, at time.Time) error {
	return m.Called(ctx, roomID, userID, at).Error(0)
}

// CountUnreadRooms mock
func (m *MockRoomRepository) CountUnreadRooms(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// ListIDsForUser mock
func (m *MockRoomRepository) ListIDsForUser(ctx context.Context, userID string) ([]primitive.ObjectID, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) != nil {
		return args.Get(0).([]primitive.ObjectID), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindUpdatedSince mock
func (m *MockRoomRepository) FindUpdatedSince(ctx context.Context, userID string, since time.Time) ([]domain.ChatRoom, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockProfileReader Mock ProfileReader
type MockProfileReader struct {
	mock.Mock
}

// GetProfiles mock
func (m *MockProfileReader) GetProfiles(ctx context.Context, ids []string) (map[string]domain.ProfileSummary, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]domain.ProfileSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockContextResolver Mock ContextResolver
type MockContextResolver struct {
	mock.Mock
}

// Resolve mock
func (m *MockContextResolver) Resolve(ctx context.Context, contextID string) (*domain.ContextSummary, error) {
	args := m.Called(ctx, contextID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ContextSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// Summaries mock
func (m *MockContextResolver) Summaries(ctx context.Context, ids []string) (map[string]domain.ContextSummary, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) != nil {
		return args.Get(0).(map[string]domain.ContextSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockNotifier Mock Notifier
type MockNotifier struct {
	mock.Mock
}

// Notify mock
func (m *MockNotifier) Notify(ctx context.Context, n domain.PushNotification) error {
	return m.Called(ctx, n).Error(0)
}

// MockPresenceRepository Mock PresenceRepository
type MockPresenceRepository struct {
	mock.Mock
}

// AddOnline mock
func (m *MockPresenceRepository) AddOnline(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// RemoveOnline mock
func (m *MockPresenceRepository) RemoveOnline(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

// OnlineUsers mock
func (m *MockPresenceRepository) OnlineUsers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// JoinRoom mock
func (m *MockPresenceRepository) JoinRoom(ctx context.Context, roomID, userID, connID string) error {
	return m.Called(ctx, roomID, userID, connID).Error(0)
}

// LeaveRoom mock
func (m *MockPresenceRepository) LeaveRoom(ctx context.Context, roomID, userID, connID string) error {
	return m.Called(ctx, roomID, userID, connID).Error(0)
}

// RoomMembers mock
func (m *MockPresenceRepository) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

// recordBus in-memory Bus, records publishes and lets tests inject envelopes
type recordBus struct {
	mu        sync.Mutex
	published []busRecord
	handler   func(channel string, env domain.BusEnvelope)
}

type busRecord struct {
	Channel string
	Env     domain.BusEnvelope
}

func (b *recordBus) Publish(_ context.Context, channel string, env domain.BusEnvelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, busRecord{Channel: channel, Env: env})
	return nil
}

func (b *recordBus) Subscribe(_ context.Context, _ []string, handler func(channel string, env domain.BusEnvelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = handler
	return nil
}

func (b *recordBus) records(channel string) []busRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []busRecord{}
	for _, r := range b.published {
		if r.Channel == channel {
			out = append(out, r)
		}
	}
	return out
}

func (b *recordBus) deliver(channel string, env domain.BusEnvelope) {
	b.mu.Lock()
	h := b.handler
	b.mu.Unlock()
	h(channel, env)
}

// ---------------------------------------------------------------
// websocket connection fake
// ---------------------------------------------------------------

type frame struct {
	Type int
	Data []byte
}

// fakeConn in 送進 ReadMessage，close(in) 模擬對方斷線
type fakeConn struct {
	in chan []byte

	mu      sync.Mutex
	written []frame
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{in: make(chan []byte, 16)}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.in
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, data, nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	c.written = append(c.written, frame{Type: messageType, Data: data})
	return nil
}

func (c *fakeConn) SetReadLimit(int64) {}
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(data string) error) {}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frames() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]frame(nil), c.written...)
}

// queued decode every frame waiting in the client send buffer
func queued(c *Client) []domain.WSResponse {
	out := []domain.WSResponse{}
	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return out
			}
			var resp domain.WSResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				out = append(out, resp)
			}
		default:
			return out
		}
	}
}

func withAction(frames []domain.WSResponse, action string) []domain.WSResponse {
	out := []domain.WSResponse{}
	for _, f := range frames {
		if f.Action == action {
			out = append(out, f)
		}
	}
	return out
}
