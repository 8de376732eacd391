package types

import "time"

// CreateLinkRequest 创建匿名分享链接.
type CreateLinkRequest struct {
	FileID        string     `binding:"required"         json:"file_id"`
	Password      string     `binding:"omitempty,max=72" json:"password,omitempty"`
	AllowDownload bool       `json:"allow_download"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Link 分享链接.
type Link struct {
	ID            string     `json:"id"`
	FileID        string     `json:"file_id"`
	OwnerID       string     `json:"owner_id"`
	HasPassword   bool       `json:"has_password"`
	AllowDownload bool       `json:"allow_download"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	AccessCount   int64      `json:"access_count"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ListLinksResponse 链接列表.
type ListLinksResponse struct {
	Links []Link `json:"links"`
}

// LinkAccessRequest 访问链接.
type LinkAccessRequest struct {
	Password string `json:"password"`
}

// PublicLink 匿名可见的链接信息.
type PublicLink struct {
	ID            string     `json:"id"`
	HasPassword   bool       `json:"has_password"`
	AllowDownload bool       `json:"allow_download"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	FileName      string     `json:"file_name"`
	MimeType      string     `json:"mime_type"`
	Size          int64      `json:"size"`
}

// LinkAccessResponse 验证通过后返回文件信息.
type LinkAccessResponse struct {
	Link PublicLink `json:"link"`
	File File       `json:"file"`
}
