package types

import "time"

// File 文件投影，不包含存储键等内部字段.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	FolderID     string    `json:"folder_id"`
	OwnerID      string    `json:"owner_id"`
	IsPublic     bool      `json:"is_public"`
	PublicSlug   *string   `json:"public_slug,omitempty"`
	Description  string    `json:"description"`
	Tags         []string  `json:"tags"`
	Version      int       `json:"version"`
	ContentHash  string    `json:"content_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpdateFileRequest 部分更新.
// FolderID 表示移动，OwnerID 表示转移所有权.
type UpdateFileRequest struct {
	Name        *string   `binding:"omitempty,min=1,max=512,objectname" json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	IsPublic    *bool     `json:"is_public,omitempty"`
	PublicSlug  *string   `binding:"omitempty,max=255"       json:"public_slug,omitempty"`
	FolderID    *string   `json:"folder_id,omitempty"`
	OwnerID     *string   `json:"owner_id,omitempty"`
}

// ListFilesResponse 文件列表.
type ListFilesResponse struct {
	Files []File `json:"files"`
}

// DownloadTokenResponse 下载令牌.
type DownloadTokenResponse struct {
	Token string `json:"token"`
	// URL 免认证下载路径
	URL string `json:"url"`
}
