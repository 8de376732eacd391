// Package rule 封装 go-playground/validator.
//
// 配置结构体使用 `rule:"..."` 标签，经由 ValidateStruct 校验；
// 请求体使用 gin 的 `binding:"..."` 标签.两个引擎彼此独立，自定义规则通过
// RegisterBindingRules 同时注册到 gin 的引擎.
package rule

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TagName 配置结构体使用的标签名.
const TagName = "rule"

var (
	inst *validator.Validate
	once sync.Once

	bindingOnce sync.Once
	bindingErr  error
)

// customRules 自定义规则，两个引擎共用.
var customRules = map[string]validator.Func{
	"objectname": func(fl validator.FieldLevel) bool { return ValidName(fl.Field().String()) },
}

func initValidator() {
	inst = validator.New(validator.WithRequiredStructEnabled())
	inst.SetTagName(TagName)

	for tag, fn := range customRules {
		// 规则在包内定义，注册失败只可能是编码错误
		if err := inst.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register rule %s: %v", tag, err))
		}
	}
}

func lazyInit() {
	once.Do(initValidator)
}

// Engine 返回配置校验使用的 *validator.Validate.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// RegisterBindingRules 把自定义规则注册到 gin 的 binding 引擎，重复调用只生效一次.
func RegisterBindingRules() error {
	bindingOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			bindingErr = errors.New("gin binding engine is not go-playground/validator")
			return
		}

		for tag, fn := range customRules {
			if err := v.RegisterValidation(tag, fn); err != nil {
				bindingErr = fmt.Errorf("register binding rule %s: %w", tag, err)
				return
			}
		}
	})

	return bindingErr
}

// RegisterValidation 注册额外的配置校验规则.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	lazyInit()

	return inst.RegisterValidation(tag, fn, opts...)
}

// ValidateStruct 按 rule 标签校验结构体.
func ValidateStruct(s any) error {
	lazyInit()

	return inst.Struct(s)
}

// ValidateVar 按规则校验单个变量，例如 ValidateVar(n, "min=1,max=365").
func ValidateVar(field any, tag string) error {
	lazyInit()

	return inst.Var(field, tag)
}

// ValidName 文件与文件夹名：去除首尾空白后非空，不是 . 或 ..，不含路径分隔符与控制字符.
func ValidName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return false
	}

	for _, r := range name {
		if r == '/' || r == '\\' || unicode.IsControl(r) {
			return false
		}
	}

	return true
}

// ValidationErrors 字段名到可读错误信息.
type ValidationErrors map[string]string

// Errors 把 validator 的错误展开为字段级信息，非校验错误返回 nil.
func Errors(err error) ValidationErrors {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return nil
	}

	out := make(ValidationErrors, len(ve))

	for _, fe := range ve {
		msg := "failed on " + fe.Tag()
		if p := fe.Param(); p != "" {
			msg += "=" + p
		}

		out[fe.Namespace()] = msg
	}

	return out
}

// Describe 生成单行错误描述，字段按出现顺序拼接.
func Describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err.Error()
	}

	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		part := fe.Field() + ": " + fe.Tag()
		if p := fe.Param(); p != "" {
			part += "=" + p
		}

		parts = append(parts, part)
	}

	return "invalid " + strings.Join(parts, ", ")
}
