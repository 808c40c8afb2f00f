package shape

import (
	"fmt"
	"strings"

	"github.com/donutnomad/shapegen/internal/utils"
)

// Naming Go 字段名到投影名的转换策略
type Naming string

const (
	NamingSnake Naming = "snake" // OrgName -> org_name（默认）
	NamingNone  Naming = "none"  // 保持 Go 字段名
)

// ParseNaming 解析命名策略，空字符串返回默认值
func ParseNaming(s string) (Naming, error) {
	switch Naming(strings.ToLower(strings.TrimSpace(s))) {
	case "", NamingSnake:
		return NamingSnake, nil
	case NamingNone:
		return NamingNone, nil
	default:
		return "", fmt.Errorf("shape: 未知的命名策略 %q，可选: snake, none", s)
	}
}

// Apply 转换 Go 字段名
func (n Naming) Apply(goName string) string {
	if n == NamingNone {
		return goName
	}
	return utils.ToSnakeCase(goName)
}

// ProjectionName 计算字段的投影名
// json tag 中的名字优先，使结果的 key 与 JSON 解码一致；json:"-" 的字段返回 skip
func ProjectionName(goName, jsonTag string, naming Naming) (name string, skip bool) {
	if jsonTag == "-" {
		return "", true
	}
	if tagName, _, _ := strings.Cut(jsonTag, ","); tagName != "" {
		return tagName, false
	}
	return naming.Apply(goName), false
}
