// Package model 定义持久化模型，所有表以 DB 为真源.
//
// 模型保持扁平，不声明 gorm 关联，查询结果由 service 层组装为 types 中的投影.
package model

import (
	crand "crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
	"gorm.io/gorm"
)

// Role 共享角色.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// RootFolderName 用户根目录名称.
const RootFolderName = "My Files"

// ID 前缀.
const (
	PendingUploadIDPrefix = "up_"
	ShareLinkIDPrefix     = "sh_"
)

var (
	ulidMu      sync.Mutex
	ulidEntropy = ulid.Monotonic(crand.Reader, 0)
)

// NewPrefixedID 生成带前缀的 ULID，按时间有序.
func NewPrefixedID(prefix string) string {
	ulidMu.Lock()
	defer ulidMu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy)

	return prefix + id.String()
}

// newUUID 为空主键填充 uuid.
func newUUID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// AllModels 返回需要迁移的全部模型.
func AllModels() []any {
	return []any{
		&User{},
		&Folder{},
		&File{},
		&FolderShare{},
		&FileShare{},
		&PendingUpload{},
		&ShareLink{},
	}
}

// AutoMigrate 迁移全部表结构.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
