package model

import (
	"time"

	"gorm.io/gorm"
)

// PendingUpload 记录已签发的直传，完成后删除，过期未完成的由 GC 回收对象.
type PendingUpload struct {
	ID         string    `gorm:"primaryKey;size:64"        json:"id"`
	StorageKey string    `gorm:"size:768;uniqueIndex"      json:"storage_key"`
	UserID     string    `gorm:"size:64;index;not null"    json:"user_id"`
	FolderID   string    `gorm:"size:64;not null"          json:"folder_id"`
	FileName   string    `gorm:"size:512"                  json:"file_name"`
	MimeType   string    `gorm:"size:255"                  json:"mime_type"`
	Size       int64     `json:"size"` // 客户端声明的大小，0 表示未知
	ExpiresAt  time.Time `gorm:"index"                     json:"expires_at"`
	CreatedAt  time.Time
}

func (p *PendingUpload) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = NewPrefixedID(PendingUploadIDPrefix)
	}

	return nil
}

// ShareLink 匿名分享链接，可选密码与过期时间.
type ShareLink struct {
	ID            string     `gorm:"primaryKey;size:64"     json:"id"`
	FileID        string     `gorm:"size:64;index;not null" json:"file_id"`
	OwnerID       string     `gorm:"size:64;index;not null" json:"owner_id"`
	PasswordHash  string     `gorm:"size:128"               json:"-"`
	AllowDownload bool       `gorm:"not null"              json:"allow_download"`
	ExpiresAt     *time.Time `gorm:"index"                  json:"expires_at,omitempty"`
	AccessCount   int64      `gorm:"not null;default:0"     json:"access_count"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (l *ShareLink) BeforeCreate(_ *gorm.DB) error {
	if l.ID == "" {
		l.ID = NewPrefixedID(ShareLinkIDPrefix)
	}

	return nil
}

// HasPassword 链接是否设置了密码.
func (l *ShareLink) HasPassword() bool {
	return l.PasswordHash != ""
}
