package types

import "time"

// ResourceType 共享资源类型.
type ResourceType string

const (
	ResourceFolder ResourceType = "folder"
	ResourceFile   ResourceType = "file"
)

// Share 共享记录投影.
type Share struct {
	ID                 string       `json:"id"`
	ResourceType       ResourceType `json:"resource_type"`
	ResourceID         string       `json:"resource_id"`
	Role               string       `json:"role"`
	OrganizationDomain string       `json:"organization_domain,omitempty"`
	ExpiresAt          *time.Time   `json:"expires_at,omitempty"`
	User               UserSummary  `json:"user"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// CreateShareRequest 授予共享，user_id 与 email 二选一.
type CreateShareRequest struct {
	ResourceID         string     `binding:"required"             json:"resource_id"`
	UserID             string     `json:"user_id,omitempty"`
	Email              string     `binding:"omitempty,email"      json:"email,omitempty"`
	Role               string     `binding:"required"             json:"role"`
	OrganizationDomain string     `binding:"omitempty,max=255"    json:"organization_domain,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
}

// UpdateShareRequest 更新共享，ClearExpiry 移除过期时间.
type UpdateShareRequest struct {
	Role        *string    `json:"role,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ClearExpiry bool       `json:"clear_expiry,omitempty"`
}

// ListSharesResponse 共享列表.
type ListSharesResponse struct {
	Shares []Share `json:"shares"`
}
