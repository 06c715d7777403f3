package domain

import (
	"strings"
	"time"
)

// MemberStatus 用來表示使用者狀態
type MemberStatus int

// 状态: 0=offline, 1=online, 2=ban ,3=delete
const (
	// MemberStatusOffLine offline
	MemberStatusOffLine MemberStatus = iota
	// MemberStatusOnLine online
	MemberStatusOnLine
	// MemberStatusBan banned
	MemberStatusBan
	// MemberStatusDelete deleted
	MemberStatusDelete
)

// Member profile columns read from the shared member table
type Member struct {
	ID        int64
	MemberID  string
	FirstName string
	LastName  string
	AvatarURL string
	Status    MemberStatus
}

// DisplayName first + last, fallback member id
func (m *Member) DisplayName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.MemberID
	}
	return name
}

// MemberDevice push token of a member device
type MemberDevice struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MemberID  string    `gorm:"size:64;index;not null" json:"member_id"`
	DeviceID  string    `gorm:"size:128;uniqueIndex;not null" json:"device_id" validate:"required,max=128"`
	PushToken string    `gorm:"size:512;not null" json:"push_token" validate:"required,max=512"`
	Platform  string    `gorm:"size:16" json:"platform" validate:"omitempty,oneof=ios android web"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName gorm table
func (MemberDevice) TableName() string {
	return "member_device"
}
