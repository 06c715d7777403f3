package repository

import (
	"context"
	"strings"

	"github.com/go-redis/redis/v8"
)

const (
	// OnlineUsersKey set of online user ids
	OnlineUsersKey = "chat:online_users"
	// onlineConnectionsKey hash user id -> live connection count
	onlineConnectionsKey = "chat:online_connections"
)

// roomMembersKey set of "<userID>|<connID>" live in the room
func roomMembersKey(roomID string) string {
	return "chat:room:" + roomID + ":members"
}

// PresenceRepository definition presence tracker
type PresenceRepository interface {
	// AddOnline returns true when this is the first live connection of the user
	AddOnline(ctx context.Context, userID string) (bool, error)
	// RemoveOnline returns true when the last live connection of the user is gone
	RemoveOnline(ctx context.Context, userID string) (bool, error)
	OnlineUsers(ctx context.Context) ([]string, error)
	JoinRoom(ctx context.Context, roomID, userID, connID string) error
	LeaveRoom(ctx context.Context, roomID, userID, connID string) error
	// RoomMembers user ids with at least one connection joined to the room
	RoomMembers(ctx context.Context, roomID string) ([]string, error)
}

type redisPresenceRepository struct {
	client *redis.Client
}

// NewRedisPresenceRepository create PresenceRepository
func NewRedisPresenceRepository(client *redis.Client) PresenceRepository {
	return &redisPresenceRepository{client: client}
}

// 計數與 online set 在同一個 script 內更新，跨 instance 的 connect / disconnect 不會交錯
var (
	addOnlineScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('SADD', KEYS[2], ARGV[1])
return n
`)

	// 只有 1 -> 0 回 1；低於 0 代表沒有對應的 add，清掉但不算下線
	removeOnlineScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n > 0 then
  return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('SREM', KEYS[2], ARGV[1])
if n == 0 then
  return 1
end
return 0
`)
)

func (r *redisPresenceRepository) AddOnline(ctx context.Context, userID string) (bool, error) {
	n, err := addOnlineScript.Run(ctx, r.client, []string{onlineConnectionsKey, OnlineUsersKey}, userID).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *redisPresenceRepository) RemoveOnline(ctx context.Context, userID string) (bool, error) {
	last, err := removeOnlineScript.Run(ctx, r.client, []string{onlineConnectionsKey, OnlineUsersKey}, userID).Int64()
	if err != nil {
		return false, err
	}
	return last == 1, nil
}

func (r *redisPresenceRepository) OnlineUsers(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, OnlineUsersKey).Result()
}

func (r *redisPresenceRepository) JoinRoom(ctx context.Context, roomID, userID, connID string) error {
	return r.client.SAdd(ctx, roomMembersKey(roomID), userID+"|"+connID).Err()
}

func (r *redisPresenceRepository) LeaveRoom(ctx context.Context, roomID, userID, connID string) error {
	return r.client.SRem(ctx, roomMembersKey(roomID), userID+"|"+connID).Err()
}

func (r *redisPresenceRepository) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	members, err := r.client.SMembers(ctx, roomMembersKey(roomID)).Result()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(members))
	users := make([]string, 0, len(members))
	for _, m := range members {
		userID := m
		if i := strings.LastIndex(m, "|"); i >= 0 {
			userID = m[:i]
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		users = append(users, userID)
	}
	return users, nil
}
