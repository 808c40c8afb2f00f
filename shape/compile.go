package shape

import (
	"fmt"
	"strings"
)

// Segment 编译结果的一个片段
// Ref 非空时表示对嵌套类型 shape 的延迟调用，否则为字面文本
type Segment struct {
	Text  string
	Ref   string
	Field string // 产生该延迟调用的 Go 字段名
}

// IsRef 是否为延迟调用
func (s Segment) IsRef() bool {
	return s.Ref != ""
}

// Compiled 记录类型的编译结果
// 嵌套类型的 shape 不在编译期内联，而是保留为延迟调用，由使用方求值
type Compiled struct {
	Type     string
	Segments []Segment
}

// Compile 按字段声明顺序编译记录类型的投影
func Compile(rt *RecordType) (*Compiled, error) {
	if rt == nil {
		return nil, &DefinitionError{Msg: "记录类型为空"}
	}
	if rt.Name == "" {
		return nil, &DefinitionError{Msg: "记录类型缺少名称"}
	}

	c := &Compiled{Type: rt.Name}
	seen := make(map[string]string, len(rt.Fields))

	for _, f := range rt.Fields {
		if err := f.Validate(); err != nil {
			if de, ok := err.(*DefinitionError); ok {
				de.Type = rt.Name
			}
			return nil, err
		}
		if prev, ok := seen[f.Name]; ok {
			return nil, &DefinitionError{
				Type:  rt.Name,
				Field: f.GoName,
				Msg:   fmt.Sprintf("投影名 %q 与字段 %s 重复", f.Name, prev),
			}
		}
		seen[f.Name] = f.GoName
		c.appendField(f)
	}

	return c, nil
}

func (c *Compiled) appendField(f FieldSpec) {
	switch f.Kind {
	case Expression:
		c.lit(f.Name + " := " + f.Source + ", ")
	case Alias:
		if f.Nested {
			c.nested(f.Name+" := ."+f.Source, f)
			return
		}
		c.lit(f.Name + " := ." + f.Source + ", ")
	default:
		if f.Nested {
			c.nested(f.Name+" := ."+f.Name, f)
			return
		}
		c.lit(f.Name + ", ")
	}
}

func (c *Compiled) nested(left string, f FieldSpec) {
	c.lit(left + " { ")
	c.Segments = append(c.Segments, Segment{Ref: f.Declared.Name, Field: f.GoName})
	c.lit(" }, ")
}

// lit 追加字面文本，与前一个字面片段合并
func (c *Compiled) lit(text string) {
	if n := len(c.Segments); n > 0 && !c.Segments[n-1].IsRef() {
		c.Segments[n-1].Text += text
		return
	}
	c.Segments = append(c.Segments, Segment{Text: text})
}

// Refs 按出现顺序返回延迟调用的类型名（去重）
func (c *Compiled) Refs() []string {
	var refs []string
	seen := make(map[string]bool)
	for _, s := range c.Segments {
		if s.IsRef() && !seen[s.Ref] {
			seen[s.Ref] = true
			refs = append(refs, s.Ref)
		}
	}
	return refs
}

// Literal 没有嵌套引用时直接返回文本
func (c *Compiled) Literal() (string, bool) {
	var sb strings.Builder
	for _, s := range c.Segments {
		if s.IsRef() {
			return "", false
		}
		sb.WriteString(s.Text)
	}
	return sb.String(), true
}

// Render 通过 lookup 求值所有延迟调用，返回完整的投影文本
func (c *Compiled) Render(lookup Lookup) (string, error) {
	var sb strings.Builder
	for _, s := range c.Segments {
		if !s.IsRef() {
			sb.WriteString(s.Text)
			continue
		}
		producer, ok := lookup.Lookup(s.Ref)
		if !ok {
			return "", &UnknownTypeError{Type: c.Type, Field: s.Field, TypeName: s.Ref}
		}
		sb.WriteString(producer())
	}
	return sb.String(), nil
}

// CheckAcyclic 检查记录类型之间的嵌套引用是否成环
// 生成的 shape 函数之间互相调用，任何环都会在求值时无限递归，因此自引用和互相引用都被拒绝。
// 未知类型的引用在这里忽略，由 CheckRefs 报告。
func CheckAcyclic(types []*RecordType) error {
	const (
		white = iota
		grey
		black
	)

	byName := make(map[string]*RecordType, len(types))
	for _, rt := range types {
		byName[rt.Name] = rt
	}

	color := make(map[string]int, len(types))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		color[name] = grey
		stack = append(stack, name)
		for _, ref := range byName[name].NestedRefs() {
			if _, ok := byName[ref]; !ok {
				continue
			}
			switch color[ref] {
			case grey:
				start := 0
				for i, s := range stack {
					if s == ref {
						start = i
						break
					}
				}
				path := append(append([]string{}, stack[start:]...), ref)
				return &CycleError{Path: path}
			case white:
				if err := visit(ref); err != nil {
					return err
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}

	for _, rt := range types {
		if color[rt.Name] == white {
			if err := visit(rt.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// CheckRefs 检查所有嵌套引用都能在 types 或 lookup 中找到
// lookup 可以为 nil
func CheckRefs(types []*RecordType, lookup Lookup) error {
	known := make(map[string]bool, len(types))
	for _, rt := range types {
		known[rt.Name] = true
	}
	for _, rt := range types {
		for _, f := range rt.Fields {
			ref := f.NestedType()
			if ref == "" || known[ref] {
				continue
			}
			if lookup != nil {
				if _, ok := lookup.Lookup(ref); ok {
					continue
				}
			}
			return &UnknownTypeError{Type: rt.Name, Field: f.GoName, TypeName: ref}
		}
	}
	return nil
}
