package shape

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// DefaultNamespace 占位符默认的命名空间，即 shape::User
const DefaultNamespace = "shape"

// placeholderRegexes 每个命名空间一个正则，匹配 \b<namespace>::<TypeName>
// 以命名空间开头匹配，default::shape::User 中的 shape::User 仍会被替换；
// 其他命名空间（如 EdgeQL 的 default::User）保持原样
var placeholderRegexes sync.Map // map[string]*regexp.Regexp

func placeholderRegex(namespace string) *regexp.Regexp {
	if re, ok := placeholderRegexes.Load(namespace); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(namespace) + `::([A-Za-z_][A-Za-z0-9_]*)`)
	actual, _ := placeholderRegexes.LoadOrStore(namespace, re)
	return actual.(*regexp.Regexp)
}

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Placeholder 模板中的一个占位符
type Placeholder struct {
	Token    string // 完整文本，如 shape::User
	TypeName string
	Start    int // 字节偏移
	End      int
}

// Expander 模板展开器
type Expander struct {
	namespace string
	lookup    Lookup
}

// NewExpander 创建展开器，namespace 为空时使用 DefaultNamespace
func NewExpander(lookup Lookup, namespace string) (*Expander, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if !identRegex.MatchString(namespace) {
		return nil, fmt.Errorf("shape: 无效的命名空间 %q", namespace)
	}
	return &Expander{namespace: namespace, lookup: lookup}, nil
}

// Namespace 返回展开器使用的命名空间
func (e *Expander) Namespace() string {
	return e.namespace
}

// Placeholders 按出现顺序返回模板中属于该命名空间的占位符
func (e *Expander) Placeholders(template string) []Placeholder {
	return FindPlaceholders(template, e.namespace)
}

// Expand 单遍、从左到右替换所有占位符
// 替换进来的文本不会被再次扫描
func (e *Expander) Expand(template string) (string, error) {
	placeholders := e.Placeholders(template)
	if len(placeholders) == 0 {
		return template, nil
	}

	var sb strings.Builder
	last := 0
	for _, p := range placeholders {
		producer, ok := e.lookup.Lookup(p.TypeName)
		if !ok {
			return "", &PlaceholderError{Token: p.Token, TypeName: p.TypeName, Offset: p.Start}
		}
		sb.WriteString(template[last:p.Start])
		sb.WriteString(producer())
		last = p.End
	}
	sb.WriteString(template[last:])
	return sb.String(), nil
}

// Expand 使用默认命名空间展开模板
func Expand(template string, lookup Lookup) (string, error) {
	e := &Expander{namespace: DefaultNamespace, lookup: lookup}
	return e.Expand(template)
}

// FindPlaceholders 查找模板中属于 namespace 的占位符（互不重叠）
func FindPlaceholders(template, namespace string) []Placeholder {
	var result []Placeholder
	for _, m := range placeholderRegex(namespace).FindAllStringSubmatchIndex(template, -1) {
		result = append(result, Placeholder{
			Token:    template[m[0]:m[1]],
			TypeName: template[m[2]:m[3]],
			Start:    m[0],
			End:      m[1],
		})
	}
	return result
}
