package rule_test

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/rule"
)

type limits struct {
	Port    int    `rule:"min=1,max=65535"`
	Host    string `rule:"ip"`
	Folder  string `rule:"omitempty,objectname"`
	Comment string `binding:"required"`
}

type createReq struct {
	Name string `binding:"required,objectname"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, rule.ValidateStruct(limits{Port: 8080, Host: "0.0.0.0"}))

	err := rule.ValidateStruct(limits{Port: 0, Host: "nope"})
	require.Error(t, err)

	fields := rule.Errors(err)
	assert.Contains(t, fields, "limits.Port")
	assert.Contains(t, fields, "limits.Host")
	// binding 标签不参与配置校验
	assert.NotContains(t, fields, "limits.Comment")

	assert.Contains(t, rule.Describe(err), "Port: min=1")
}

func TestValidateVar(t *testing.T) {
	assert.NoError(t, rule.ValidateVar(14, "min=1,max=365"))
	assert.Error(t, rule.ValidateVar(0, "min=1,max=365"))
	assert.NoError(t, rule.ValidateVar("a@example.com", "required,email"))
	assert.Error(t, rule.ValidateVar("not-an-email", "required,email"))
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"report.pdf", "My Files", "数据 2024", ".hidden"} {
		assert.True(t, rule.ValidName(ok), ok)
	}

	for _, bad := range []string{"", "   ", ".", "..", "a/b", `a\b`, "tab\tname"} {
		assert.False(t, rule.ValidName(bad), bad)
	}
}

func TestRegisterBindingRules(t *testing.T) {
	require.NoError(t, rule.RegisterBindingRules())
	require.NoError(t, rule.RegisterBindingRules())

	assert.NoError(t, binding.Validator.ValidateStruct(&createReq{Name: "docs"}))
	assert.Error(t, binding.Validator.ValidateStruct(&createReq{Name: "../etc"}))
	assert.Error(t, binding.Validator.ValidateStruct(&createReq{}))
}

func TestErrorsOnPlainError(t *testing.T) {
	assert.Nil(t, rule.Errors(assert.AnError))
	assert.Equal(t, assert.AnError.Error(), rule.Describe(assert.AnError))
}
