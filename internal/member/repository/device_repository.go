package repository

import (
	"context"
	"errors"

	"task_chat_service/internal/member/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceRepository definition member push token store
type DeviceRepository interface {
	AutoMigrate() error
	Upsert(ctx context.Context, device *domain.MemberDevice) error
	// LatestPushToken empty string when the member has no device
	LatestPushToken(ctx context.Context, memberID string) (string, error)
	Delete(ctx context.Context, memberID, deviceID string) error
}

type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository create DeviceRepository
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

// AutoMigrate create member_device table
func (r *deviceRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&domain.MemberDevice{})
}

// Upsert insert or refresh token by device id
func (r *deviceRepository) Upsert(ctx context.Context, device *domain.MemberDevice) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"member_id", "push_token", "platform", "updated_at"}),
	}).Create(device).Error
}

// LatestPushToken most recently refreshed token of member
func (r *deviceRepository) LatestPushToken(ctx context.Context, memberID string) (string, error) {
	var d domain.MemberDevice
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("updated_at DESC").
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return d.PushToken, nil
}

// Delete remove device token (logout on device)
func (r *deviceRepository) Delete(ctx context.Context, memberID, deviceID string) error {
	return r.db.WithContext(ctx).
		Where("member_id = ? AND device_id = ?", memberID, deviceID).
		Delete(&domain.MemberDevice{}).Error
}
