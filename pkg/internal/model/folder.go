package model

import (
	"time"

	"gorm.io/gorm"
)

// Folder 文件夹，ParentID 为空表示顶层.
type Folder struct {
	ID          string  `gorm:"primaryKey;size:64"    json:"id"`
	Name        string  `gorm:"size:255;not null"     json:"name"`
	OwnerID     string  `gorm:"size:64;index;not null" json:"owner_id"`
	ParentID    *string `gorm:"size:64;index"         json:"parent_id,omitempty"`
	IsPublic    bool    `gorm:"not null;default:false" json:"is_public"`
	Color       string  `gorm:"size:32"               json:"color"`
	Description string  `gorm:"type:text"             json:"description"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (f *Folder) BeforeCreate(_ *gorm.DB) error {
	newUUID(&f.ID)

	return nil
}

// FolderShare 文件夹共享，(folder, user) 唯一.
type FolderShare struct {
	ID                 string     `gorm:"primaryKey;size:64"                              json:"id"`
	FolderID           string     `gorm:"size:64;not null;uniqueIndex:idx_folder_share_user" json:"folder_id"`
	UserID             string     `gorm:"size:64;not null;uniqueIndex:idx_folder_share_user;index" json:"user_id"`
	Role               Role       `gorm:"size:16;not null"                                json:"role"`
	OrganizationDomain string     `gorm:"size:255"                                        json:"organization_domain,omitempty"`
	ExpiresAt          *time.Time `gorm:"index"                                           json:"expires_at,omitempty"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (s *FolderShare) BeforeCreate(_ *gorm.DB) error {
	newUUID(&s.ID)

	return nil
}
