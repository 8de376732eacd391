// Package permission 判断调用方对文件夹或文件是否具备所需角色.
//
// 规则：所有者总是通过；公开资源对任何人（包括匿名）开放 VIEWER 读取；
// 其余情况需要未过期的共享记录，且授予角色的等级不低于所需角色.
// 文件权限不继承所在文件夹的共享.
package permission

import (
	"time"

	"github.com/yeisme/cloudvault/pkg/internal/model"
)

// Kind 资源类型.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
)

// Grant 调用方在资源上的共享记录.
type Grant struct {
	Role      model.Role
	ExpiresAt *time.Time
}

// Expired 判断共享是否已过期，过期时刻本身视为已过期.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

// Subject 一次权限判断所需的全部事实.
type Subject struct {
	Kind    Kind
	OwnerID string
	// UserID 为空表示匿名调用方
	UserID string
	// PublicRead 资源公开且本次为读取路径
	PublicRead bool
	Grant      *Grant
}

var (
	folderRanks = map[model.Role]int{model.RoleOwner: 3, model.RoleEditor: 2, model.RoleViewer: 1}
	fileRanks   = map[model.Role]int{model.RoleEditor: 2, model.RoleViewer: 1}
	// 所需角色的等级与资源类型无关
	requiredRanks = folderRanks
)

// Rank 返回角色在该资源类型上的等级，无效角色为 0.
func Rank(kind Kind, role model.Role) int {
	if kind == KindFile {
		return fileRanks[role]
	}

	return folderRanks[role]
}

// ValidRole 判断角色是否可用于该资源类型的共享.
func ValidRole(kind Kind, role model.Role) bool {
	return Rank(kind, role) > 0
}

// Allowed 纯函数判断.
func Allowed(s Subject, required model.Role, now time.Time) bool {
	need, ok := requiredRanks[required]
	if !ok {
		return false
	}

	if s.UserID != "" && s.UserID == s.OwnerID {
		return true
	}

	if s.PublicRead && required == model.RoleViewer {
		return true
	}

	if s.UserID == "" || s.Grant == nil || s.Grant.Expired(now) {
		return false
	}

	return Rank(s.Kind, s.Grant.Role) >= need
}
