// Package queue 定义消息主题常量.
package queue

import "github.com/yeisme/cloudvault/pkg/configs"

// 主题命名规范：cv.<域>.<动作>，保持稳定且向后兼容.
const (
	// 文件.
	TopicFileStored      = "cv.file.stored"      // 文件内容已写入且元数据已提交
	TopicFileDeleted     = "cv.file.deleted"     // 文件记录已删除（对象删除为尽力而为）
	TopicFileMoved       = "cv.file.moved"       // 文件移动到其他文件夹
	TopicFileTransferred = "cv.file.transferred" // 文件所有权转移

	// 文件夹.
	TopicFolderCreated = "cv.folder.created"
	TopicFolderDeleted = "cv.folder.deleted" // 包含递归删除的统计

	// 共享.
	TopicShareGranted = "cv.share.granted"
	TopicShareRevoked = "cv.share.revoked"

	// 上传与配额.
	TopicUploadOrphaned = "cv.upload.orphaned" // 签名上传过期未完成，对象已回收
	TopicQuotaExceeded  = "cv.quota.exceeded"

	// 用户.
	TopicUserProvisioned = "cv.user.provisioned" // 首次登录或注册，已创建根目录
)

// AllTopics 全部主题，mq ls 等工具使用.
var AllTopics = []string{
	TopicFileStored, TopicFileDeleted, TopicFileMoved, TopicFileTransferred,
	TopicFolderCreated, TopicFolderDeleted,
	TopicShareGranted, TopicShareRevoked,
	TopicUploadOrphaned, TopicQuotaExceeded,
	TopicUserProvisioned,
}

// Enabled 按 events 配置判断主题是否需要发布.
func Enabled(cfg *configs.EventsConfig, topic string) bool {
	if cfg == nil || !cfg.Enabled {
		return false
	}

	switch topic {
	case TopicFileStored:
		return cfg.File.Stored
	case TopicFileDeleted:
		return cfg.File.Deleted
	case TopicFileMoved:
		return cfg.File.Moved
	case TopicFileTransferred:
		return cfg.File.Transferred
	case TopicFolderCreated:
		return cfg.Folder.Created
	case TopicFolderDeleted:
		return cfg.Folder.Deleted
	case TopicShareGranted:
		return cfg.Share.Granted
	case TopicShareRevoked:
		return cfg.Share.Revoked
	case TopicUploadOrphaned:
		return cfg.Upload.Orphaned
	case TopicQuotaExceeded:
		return cfg.Quota.Exceeded
	case TopicUserProvisioned:
		return cfg.User.Provisioned
	default:
		return false
	}
}
