package errors

import (
	"errors"
	"fmt"
)

// AppError 应用错误类型
// 用于统一管理同步层错误，包含错误码和错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，用于调试）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "服务器内部错误"
}

// IsTransient 判断错误是否为瞬时错误（可重试/可降级到离线模式）
// 超时在重试语义上等同于连接不可用
func IsTransient(err error) bool {
	code := GetCode(err)
	return code == CodeConnectionUnavailable || code == CodeTimeout
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 连接相关 20000-20999
	CodeConnectionUnavailable = 20001
	CodeTimeout               = 20002
	CodeAuthFailed            = 20003

	// 数据相关 21000-21999
	CodeNotFound        = 21001
	CodeValidationError = 21002

	// 系统错误 50000-50999
	CodeServerError = 50001
)

// ============== 预定义错误 ==============

// 连接相关
var (
	ErrConnectionUnavailable = NewError(CodeConnectionUnavailable, "实时数据连接不可用")
	ErrTimeout               = NewError(CodeTimeout, "操作超时")
	ErrAuthFailed            = NewError(CodeAuthFailed, "实时数据认证失败")
)

// 数据相关
var (
	ErrNotFound        = NewError(CodeNotFound, "请求的数据不存在")
	ErrValidationError = NewError(CodeValidationError, "参数校验失败")
)

// 系统相关
var (
	ErrServerError = NewError(CodeServerError, "服务器内部错误")
)
