package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 文件 --------------------------

// FileRef 标识文件及其对象.
type FileRef struct {
	FileID     string `json:"file_id"`
	Name       string `json:"name"`
	FolderID   string `json:"folder_id"`
	OwnerID    string `json:"owner_id"`
	StorageKey string `json:"storage_key"`
	Bucket     string `json:"bucket,omitempty"`
	Size       int64  `json:"size"`
	MimeType   string `json:"mime_type,omitempty"`
}

// FileStoredPayload 文件已写入.
type FileStoredPayload struct {
	File        FileRef `json:"file"`
	ContentHash string  `json:"content_hash,omitempty"`
	// Source server 或 signed
	Source string `json:"source"`
}

// FileDeletedPayload 文件已删除.
type FileDeletedPayload struct {
	File    FileRef `json:"file"`
	ActorID string  `json:"actor_id"`
}

// FileMovedPayload 文件移动.
type FileMovedPayload struct {
	File         FileRef `json:"file"`
	FromFolderID string  `json:"from_folder_id"`
	ActorID      string  `json:"actor_id"`
}

// FileTransferredPayload 所有权转移.
type FileTransferredPayload struct {
	File        FileRef `json:"file"`
	FromOwnerID string  `json:"from_owner_id"`
	ToOwnerID   string  `json:"to_owner_id"`
}

// -------------------------- 文件夹 --------------------------

// FolderCreatedPayload 文件夹创建.
type FolderCreatedPayload struct {
	FolderID string  `json:"folder_id"`
	Name     string  `json:"name"`
	OwnerID  string  `json:"owner_id"`
	ParentID *string `json:"parent_id,omitempty"`
}

// FolderDeletedPayload 文件夹删除，递归时包含子树统计.
type FolderDeletedPayload struct {
	FolderID     string `json:"folder_id"`
	OwnerID      string `json:"owner_id"`
	Recursive    bool   `json:"recursive"`
	Folders      int    `json:"folders"`
	Files        int    `json:"files"`
	ReleasedSize int64  `json:"released_size"`
}

// -------------------------- 共享 --------------------------

// SharePayload 共享授予或撤销.
type SharePayload struct {
	ShareID      string     `json:"share_id"`
	ResourceType string     `json:"resource_type"` // folder | file
	ResourceID   string     `json:"resource_id"`
	OwnerID      string     `json:"owner_id"`
	UserID       string     `json:"user_id"`
	Role         string     `json:"role"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// -------------------------- 上传与配额 --------------------------

// UploadOrphanedPayload 签名上传过期未完成.
type UploadOrphanedPayload struct {
	UploadID   string    `json:"upload_id"`
	UserID     string    `json:"user_id"`
	StorageKey string    `json:"storage_key"`
	ExpiredAt  time.Time `json:"expired_at"`
	// BlobDeleted 对象是否已删除（客户端可能从未上传）
	BlobDeleted bool `json:"blob_deleted"`
}

// QuotaExceededPayload 配额不足被拒绝.
type QuotaExceededPayload struct {
	UserID    string `json:"user_id"`
	Requested int64  `json:"requested"`
	Used      int64  `json:"used"`
	Quota     int64  `json:"quota"`
}

// -------------------------- 用户 --------------------------

// UserProvisionedPayload 用户创建.
type UserProvisionedPayload struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	RootFolderID string `json:"root_folder_id"`
	// Source oracle 或 signup
	Source string `json:"source"`
}
