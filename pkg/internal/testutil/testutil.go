// Package testutil 提供测试用的内存数据库与数据构造.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
	"github.com/yeisme/cloudvault/pkg/internal/storage/db"
)

var seq atomic.Int64

// NewDB 创建已迁移的内存 SQLite，单连接保证所有查询看到同一个库.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	ctx := context.Background()

	client, err := db.Open(ctx, sqlite.Open(":memory:"))
	require.NoError(t, err)

	sqlDB, err := client.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, client.Migrate(ctx))

	t.Cleanup(func() { _ = sqlDB.Close() })

	return client.DB
}

// NewUser 创建带根目录的用户，quota 为字节数.
func NewUser(t testing.TB, gdb *gorm.DB, quota int64) *model.User {
	t.Helper()

	n := seq.Add(1)
	u := &model.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		Name:         fmt.Sprintf("user%d", n),
		StorageQuota: quota,
	}

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}

		root := &model.Folder{Name: model.RootFolderName, OwnerID: u.ID}
		if err := tx.Create(root).Error; err != nil {
			return err
		}

		u.RootFolderID = &root.ID

		return tx.Model(u).Update("root_folder_id", root.ID).Error
	}))

	return u
}

// NewFolder 在 parent 下创建文件夹，parent 为空表示顶层.
func NewFolder(t testing.TB, gdb *gorm.DB, owner *model.User, parent string) *model.Folder {
	t.Helper()

	f := &model.Folder{Name: fmt.Sprintf("folder-%d", seq.Add(1)), OwnerID: owner.ID}
	if parent != "" {
		f.ParentID = &parent
	}

	require.NoError(t, gdb.Create(f).Error)

	return f
}

// NewFile 直接写入文件记录并计入用量.
func NewFile(t testing.TB, gdb *gorm.DB, owner *model.User, folderID string, size int64) *model.File {
	t.Helper()

	n := seq.Add(1)
	f := &model.File{
		Name:       fmt.Sprintf("file-%d.txt", n),
		StorageKey: fmt.Sprintf("users/%s/%d-file.txt", owner.ID, n),
		MimeType:   "text/plain",
		Size:       size,
		FolderID:   folderID,
		OwnerID:    owner.ID,
	}

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(f).Error; err != nil {
			return err
		}

		return tx.Model(&model.User{}).Where("id = ?", owner.ID).
			Update("storage_used", gorm.Expr("storage_used + ?", size)).Error
	}))

	return f
}

// NewBlobStore 基于临时目录的本地对象存储，baseURL 为空时下载经服务中转.
func NewBlobStore(t testing.TB, baseURL string) *blob.LocalStore {
	t.Helper()

	store, err := blob.NewLocalStore(&configs.BlobConfig{
		Bucket: "test",
		Local:  configs.LocalBlobConfig{Root: t.TempDir(), BaseURL: baseURL, UploadURL: "http://localhost/api/v1/files/upload/local"},
	})
	require.NoError(t, err)

	return store
}
