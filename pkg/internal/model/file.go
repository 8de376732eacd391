package model

import (
	"time"

	"gorm.io/gorm"
)

// File 文件元数据，内容保存在 blob 存储中.
type File struct {
	ID           string `gorm:"primaryKey;size:64"          json:"id"`
	Name         string `gorm:"size:512;not null"           json:"name"`
	OriginalName string `gorm:"size:512"                    json:"original_name"`
	// StorageKey 对象键 users/{userId}/...
	StorageKey string `gorm:"size:768;uniqueIndex;not null" json:"storage_key"`
	// ObjectID 存储后端的版本标识，如 B2 fileId，删除时需要
	ObjectID    string   `gorm:"size:255"                 json:"object_id,omitempty"`
	BucketName  string   `gorm:"size:255"                 json:"bucket_name"`
	MimeType    string   `gorm:"size:255"                 json:"mime_type"`
	Size        int64    `gorm:"not null"                 json:"size"`
	FolderID    string   `gorm:"size:64;index;not null"   json:"folder_id"`
	OwnerID     string   `gorm:"size:64;index;not null"   json:"owner_id"`
	IsPublic    bool     `gorm:"not null;default:false"   json:"is_public"`
	PublicSlug  *string  `gorm:"size:255;uniqueIndex"     json:"public_slug,omitempty"`
	Description string   `gorm:"type:text"                json:"description"`
	Tags        []string `gorm:"type:text;serializer:json" json:"tags"`
	Version     int      `gorm:"not null;default:1"       json:"version"`
	ContentHash string   `gorm:"size:64"                  json:"content_hash,omitempty"` // sha256 hex
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (f *File) BeforeCreate(_ *gorm.DB) error {
	newUUID(&f.ID)

	if f.Version == 0 {
		f.Version = 1
	}

	return nil
}

// FileShare 文件共享，(file, user) 唯一.
// ShareToken 与 SharePassword 仅为兼容旧表结构保留，匿名链接见 ShareLink.
type FileShare struct {
	ID                 string     `gorm:"primaryKey;size:64"                                json:"id"`
	FileID             string     `gorm:"size:64;not null;uniqueIndex:idx_file_share_user"  json:"file_id"`
	UserID             string     `gorm:"size:64;not null;uniqueIndex:idx_file_share_user;index" json:"user_id"`
	Role               Role       `gorm:"size:16;not null"                                  json:"role"`
	OrganizationDomain string     `gorm:"size:255"                                          json:"organization_domain,omitempty"`
	ExpiresAt          *time.Time `gorm:"index"                                             json:"expires_at,omitempty"`
	ShareToken         *string    `gorm:"size:128"                                          json:"-"`
	SharePassword      *string    `gorm:"size:128"                                          json:"-"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (s *FileShare) BeforeCreate(_ *gorm.DB) error {
	newUUID(&s.ID)

	return nil
}
