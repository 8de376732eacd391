package blob_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
)

func TestBuildKey(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	key := blob.BuildKey("u1", "My Report (1).pdf", now)
	assert.Regexp(t, regexp.MustCompile(`^users/u1/1700000000123-[0-9a-f]{16}-My_Report__1_\.pdf$`), key)
	assert.True(t, blob.OwnsKey("u1", key))
	assert.False(t, blob.OwnsKey("u2", key))

	// 同一毫秒内也不重复
	assert.NotEqual(t, key, blob.BuildKey("u1", "My Report (1).pdf", now))
}

func TestOwnsKey(t *testing.T) {
	assert.False(t, blob.OwnsKey("", "users//x"))
	assert.False(t, blob.OwnsKey("u1", "users/u1/../u2/x"))
	assert.False(t, blob.OwnsKey("u1", "users/u10/x"))
	assert.True(t, blob.OwnsKey("u1", "users/u1/x"))
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"a.txt":            "a.txt",
		"../../etc/passwd": "passwd",
		`C:\tmp\x.doc`:     "x.doc",
		"报告.pdf":           "报告.pdf",
		"":                 "file",
		"...":              "file",
		"a b?c.txt":        "a_b_c.txt",
	}

	for in, want := range cases {
		assert.Equal(t, want, blob.SanitizeName(in), in)
	}

	long := strings.Repeat("é", 250) + ".txt"
	assert.Len(t, []rune(blob.SanitizeName(long)), 200)
}
