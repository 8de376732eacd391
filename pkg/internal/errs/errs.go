// Package errs 定义业务错误类型，并统一映射为 HTTP 状态码与对外消息.
//
// service 层只返回 *errs.Error（或由 FromDB 转换后的错误），handle 层通过
// HTTPStatus 与 Public 生成响应，内部原因只写日志不返回给调用方.
package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"
)

// Kind 错误分类.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindBadRequest
	KindUnauthorized
	KindUnavailable
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error 业务错误.
type Error struct {
	Kind Kind
	Msg  string // 对外可见的消息
	Err  error  // 内部原因，可为 nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New 创建指定分类的错误.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap 以指定分类包装内部错误.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string) *Error     { return New(KindNotFound, msg) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg) }
func Conflict(msg string) *Error     { return New(KindConflict, msg) }
func BadRequest(msg string) *Error   { return New(KindBadRequest, msg) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg) }
func RateLimited(msg string) *Error  { return New(KindRateLimited, msg) }

// Unavailable 外部依赖暂时不可用（超时、连接失败），调用方可重试.
func Unavailable(msg string, err error) *Error { return Wrap(KindUnavailable, msg, err) }

// Internal 内部错误，对外只返回通用消息.
func Internal(err error) *Error { return Wrap(KindInternal, "internal server error", err) }

// KindOf 返回错误分类，非 *Error 视为 Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Is 判断错误是否属于指定分类.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus 将错误映射为 HTTP 状态码.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Public 返回可以暴露给调用方的消息.
func Public(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return "internal server error"
		}

		return e.Msg
	}

	return "internal server error"
}

// FromDB 转换数据库错误，what 描述被操作的对象（如 "folder"）.
// 已经是 *Error 的直接返回.
func FromDB(err error, what string) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return Wrap(KindNotFound, what+" not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err):
		return Wrap(KindConflict, what+" already exists", err)
	case errors.Is(err, context.DeadlineExceeded):
		return Unavailable("database timeout", err)
	default:
		return Internal(err)
	}
}

// isUniqueViolation 兼容未开启 TranslateError 的驱动.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
