package model

import (
	"time"

	"gorm.io/gorm"
)

// User 用户，ID 与外部身份 ID 一致.
type User struct {
	ID           string  `gorm:"primaryKey;size:64"          json:"id"`
	Email        string  `gorm:"size:255;uniqueIndex"        json:"email"`
	Name         string  `gorm:"size:255"                    json:"name"`
	PasswordHash string  `gorm:"size:128"                    json:"-"` // 仅本地注册用户
	StorageQuota int64   `gorm:"not null;default:0"          json:"storage_quota"`
	StorageUsed  int64   `gorm:"not null;default:0"          json:"storage_used"` // 由 quota 账本维护
	RootFolderID *string `gorm:"size:64"                     json:"root_folder_id,omitempty"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	newUUID(&u.ID)

	return nil
}
