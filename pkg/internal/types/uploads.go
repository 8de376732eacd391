package types

import "time"

// SignedUploadRequest 申请直传地址.
type SignedUploadRequest struct {
	FileName string `binding:"required,max=512,objectname" json:"file_name"`
	MimeType string `json:"mime_type"`
	FolderID string `binding:"required"         json:"folder_id"`
	// Size 可选，提供时提前校验大小与配额
	Size *int64 `json:"size,omitempty"`
}

// SignedUploadResponse 直传地址.
type SignedUploadResponse struct {
	UploadURL  string            `json:"upload_url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	StorageKey string            `json:"storage_key"`
	ExpiresAt  time.Time         `json:"expires_at"`
	UploadID   string            `json:"upload_id"`
}

// CompleteUploadRequest 直传完成确认.
type CompleteUploadRequest struct {
	StorageKey string `binding:"required" json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	FolderID   string `json:"folder_id"`
	Size       *int64 `json:"size,omitempty"`
}

// UploadInput 服务端中转上传.
type UploadInput struct {
	FolderID string
	Name     string
	MimeType string
	Size     int64
}
