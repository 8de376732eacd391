package blob

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"
)

const maxNameLen = 200

// UserPrefix 返回用户的对象键前缀.
func UserPrefix(userID string) string {
	return "users/" + userID + "/"
}

// BuildKey 生成对象键 users/{userId}/{unixMillis}-{16 hex}-{sanitized name}.
func BuildKey(userID, fileName string, now time.Time) string {
	var rnd [8]byte
	_, _ = crand.Read(rnd[:])

	return fmt.Sprintf("%s%d-%s-%s", UserPrefix(userID), now.UnixMilli(), hex.EncodeToString(rnd[:]), SanitizeName(fileName))
}

// OwnsKey 判断 key 是否属于该用户的命名空间.
func OwnsKey(userID, key string) bool {
	if userID == "" || strings.Contains(key, "..") {
		return false
	}

	return strings.HasPrefix(key, UserPrefix(userID))
}

// SanitizeName 清理文件名，只保留安全字符.
func SanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = ""
	}

	var b strings.Builder

	for _, r := range name {
		// 非 ASCII 字母同样保留，B2/S3 均支持 UTF-8 键
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	out := strings.Trim(b.String(), ".")
	if out == "" {
		out = "file"
	}

	if runes := []rune(out); len(runes) > maxNameLen {
		out = string(runes[len(runes)-maxNameLen:])
	}

	return out
}
