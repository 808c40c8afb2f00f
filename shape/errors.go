package shape

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDefinition 所有结构性定义错误都满足 errors.Is(err, ErrDefinition)
// 定义错误不可重试，只能修改类型定义或模板
var ErrDefinition = errors.New("shape 定义错误")

// DefinitionError 字段注解错误
type DefinitionError struct {
	Type  string // 记录类型名，可能为空
	Field string // 出错的字段（Go 字段名）
	Msg   string
}

func (e *DefinitionError) Error() string {
	var sb strings.Builder
	sb.WriteString("shape: ")
	if e.Type != "" {
		sb.WriteString(e.Type)
		if e.Field != "" {
			sb.WriteString(".")
		}
	}
	if e.Field != "" {
		sb.WriteString(e.Field)
	}
	if e.Type != "" || e.Field != "" {
		sb.WriteString(": ")
	}
	sb.WriteString(e.Msg)
	return sb.String()
}

func (e *DefinitionError) Is(target error) bool {
	return target == ErrDefinition
}

func fieldError(field, format string, args ...any) *DefinitionError {
	return &DefinitionError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// CycleError 嵌套引用成环
type CycleError struct {
	Path []string // 环路，首尾相同，如 [A B A]
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("shape: 嵌套引用成环: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Is(target error) bool {
	return target == ErrDefinition
}

// PlaceholderError 模板中的占位符无法解析
type PlaceholderError struct {
	Token    string // 完整的占位符，如 shape::User
	TypeName string
	Offset   int // 占位符在模板中的字节偏移
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("shape: 占位符 %s (偏移 %d) 引用了未注册的类型 %q", e.Token, e.Offset, e.TypeName)
}

func (e *PlaceholderError) Is(target error) bool {
	return target == ErrDefinition
}

// UnknownTypeError 嵌套字段引用了未注册的类型
type UnknownTypeError struct {
	Type     string // 引用方
	Field    string
	TypeName string // 被引用的类型
}

func (e *UnknownTypeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("shape: 未注册的类型 %q", e.TypeName)
	}
	return fmt.Sprintf("shape: %s.%s: 嵌套类型 %q 未注册", e.Type, e.Field, e.TypeName)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrDefinition
}
