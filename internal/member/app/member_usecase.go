package app

import (
	"context"
	"time"

	chat_domain "task_chat_service/internal/chat/domain"
	"task_chat_service/internal/member/domain"
	"task_chat_service/internal/member/repository"
	"task_chat_service/pkg/database"
	errprocess "task_chat_service/pkg/err"
	"task_chat_service/pkg/logger"
	"task_chat_service/pkg/validation"

	"go.uber.org/zap"
)

// MemberUseCase profile and device lookups the chat service needs
type MemberUseCase interface {
	GetProfiles(ctx context.Context, ids []string) (map[string]chat_domain.ProfileSummary, error)
	RegisterDevice(ctx context.Context, memberID string, device *domain.MemberDevice) error
	UnregisterDevice(ctx context.Context, memberID, deviceID string) error
	PushToken(ctx context.Context, memberID string) (string, error)
}

type memberUseCase struct {
	memberRepo repository.MemberRepository
	deviceRepo repository.DeviceRepository
	cache      database.RedisRepository[chat_domain.ProfileSummary]
	cacheTTL   time.Duration
}

// NewMemberUseCase cache may be nil
func NewMemberUseCase(
	memberRepo repository.MemberRepository,
	deviceRepo repository.DeviceRepository,
	cache database.RedisRepository[chat_domain.ProfileSummary],
	cacheTTL time.Duration,
) MemberUseCase {
	return &memberUseCase{
		memberRepo: memberRepo,
		deviceRepo: deviceRepo,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

// GetProfiles 先查 cache，miss 的再一次查 PG
func (m *memberUseCase) GetProfiles(ctx context.Context, ids []string) (map[string]chat_domain.ProfileSummary, error) {
	out := make(map[string]chat_domain.ProfileSummary, len(ids))
	missing := make([]string, 0, len(ids))

	for _, id := range ids {
		if _, ok := out[id]; ok || id == "" {
			continue
		}
		if m.cache != nil {
			if p, err := m.cache.Get(ctx, id); err == nil {
				out[id] = p
				continue
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	members, err := m.memberRepo.FindByMemberIDs(ctx, missing)
	if err != nil {
		return nil, errprocess.External(err, "load member profiles")
	}

	for _, mem := range members {
		p := chat_domain.ProfileSummary{
			ID:          mem.MemberID,
			FirstName:   mem.FirstName,
			LastName:    mem.LastName,
			DisplayName: mem.DisplayName(),
			AvatarURL:   mem.AvatarURL,
		}
		out[mem.MemberID] = p
		if m.cache != nil {
			if err := m.cache.Set(ctx, mem.MemberID, p, m.cacheTTL); err != nil {
				logger.Log.Warn("profile cache set", zap.String("member_id", mem.MemberID), zap.Error(err))
			}
		}
	}
	return out, nil
}

// RegisterDevice store push token of a device
func (m *memberUseCase) RegisterDevice(ctx context.Context, memberID string, device *domain.MemberDevice) error {
	if err := validation.ValidateStruct(device); err != nil {
		return err
	}
	device.MemberID = memberID
	device.UpdatedAt = time.Now().UTC()
	return m.deviceRepo.Upsert(ctx, device)
}

// UnregisterDevice remove push token of a device
func (m *memberUseCase) UnregisterDevice(ctx context.Context, memberID, deviceID string) error {
	if deviceID == "" {
		return errprocess.Validation("device_id is required")
	}
	return m.deviceRepo.Delete(ctx, memberID, deviceID)
}

// PushToken latest push token, "" when none
func (m *memberUseCase) PushToken(ctx context.Context, memberID string) (string, error) {
	return m.deviceRepo.LatestPushToken(ctx, memberID)
}
