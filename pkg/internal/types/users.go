package types

import "time"

// UserSummary 对外展示的用户信息.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// User 当前用户.
type User struct {
	UserSummary
	RootFolderID string    `json:"root_folder_id,omitempty"`
	StorageQuota int64     `json:"storage_quota"`
	StorageUsed  int64     `json:"storage_used"`
	CreatedAt    time.Time `json:"created_at"`
}

// StorageUsage 存储用量.
type StorageUsage struct {
	Used  int64 `json:"used"`
	Quota int64 `json:"quota"`
}

// SignupRequest 本地注册.
type SignupRequest struct {
	Email           string `binding:"required,email"  json:"email"`
	Name            string `binding:"required,max=255" json:"name"`
	Password        string `binding:"required,min=8"  json:"password"`
	ConfirmPassword string `binding:"required"        json:"confirm_password"`
}

// UpdateProfileRequest 修改资料与密码，需提供旧密码.
type UpdateProfileRequest struct {
	SignupRequest
	OldPassword string `binding:"required" json:"old_password"`
}

// SigninRequest 本地登录.
type SigninRequest struct {
	Email    string `binding:"required,email" json:"email"`
	Password string `binding:"required"       json:"password"`
}

// AuthResponse 登录或注册成功，令牌同时写入 cookie.
type AuthResponse struct {
	User      UserSummary `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
}
