package types

import "time"

// Folder 文件夹投影.
type Folder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerID     string    `json:"owner_id"`
	ParentID    *string   `json:"parent_id,omitempty"`
	IsPublic    bool      `json:"is_public"`
	Color       string    `json:"color"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FolderSummary 父目录等引用.
type FolderSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FolderDetail 文件夹详情，shares 仅对所有者返回.
type FolderDetail struct {
	Folder
	Owner      UserSummary    `json:"owner"`
	Parent     *FolderSummary `json:"parent,omitempty"`
	Subfolders []Folder       `json:"subfolders"`
	Files      []File         `json:"files"`
	Shares     []Share        `json:"shares,omitempty"`
}

// CreateFolderRequest 创建文件夹.
type CreateFolderRequest struct {
	Name        string  `binding:"required,max=255,objectname" json:"name"`
	ParentID    *string `json:"parent_id,omitempty"`
	Color       string  `binding:"max=32"                        json:"color"`
	Description string  `json:"description"`
	IsPublic    bool    `json:"is_public"`
}

// UpdateFolderRequest 部分更新，nil 字段保持不变.
type UpdateFolderRequest struct {
	Name        *string `binding:"omitempty,min=1,max=255,objectname" json:"name,omitempty"`
	ParentID    *string `json:"parent_id,omitempty"`
	Color       *string `binding:"omitempty,max=32"                   json:"color,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// ListFoldersResponse 文件夹列表.
type ListFoldersResponse struct {
	Folders []Folder `json:"folders"`
}

// DeleteFolderResult 删除统计.
type DeleteFolderResult struct {
	Folders      int   `json:"folders"`
	Files        int   `json:"files"`
	ReleasedSize int64 `json:"released_size"`
}
