package shape

import (
	"strings"

	"github.com/spf13/cast"
)

// TagName 字段注解使用的 struct tag 名
const TagName = "shape"

// Options 单个字段的原始注解，由 `shape:"..."` tag 解码而来
//
// 支持的写法:
//
//	`shape:"alias=org,nested"`
//	`shape:"exp=.name.first"`
//	`shape:"nested"`
//	`shape:"-"`
//
// exp 的值包含其后的全部内容（表达式里可以有逗号），因此 exp 必须写在最后。
// exp 原样保留，引号属于表达式本身（exp='a' ++ .name）；alias 是标识符，成对的引号会被去掉。
// 参数名区分大小写。
type Options struct {
	Alias    string
	Exp      string
	Nested   bool
	Skip     bool
	HasAlias bool
	HasExp   bool
}

// ParseOptions 解析 shape tag 的内容
// 返回的错误不带字段名，由调用方补充
func ParseOptions(tag string) (Options, error) {
	var opts Options

	tag = strings.TrimSpace(tag)
	if tag == "-" {
		opts.Skip = true
		return opts, nil
	}

	rest := tag
	for rest != "" {
		entry := rest
		next := ""
		if idx := strings.IndexByte(rest, ','); idx >= 0 {
			entry, next = rest[:idx], rest[idx+1:]
		}

		rawKey, value, hasValue := strings.Cut(entry, "=")
		key := strings.TrimSpace(rawKey)

		// exp 消费剩余全部内容
		if key == "exp" && hasValue {
			value = rest[len(rawKey)+1:]
			next = ""
		}
		value = strings.TrimSpace(value)

		switch key {
		case "":
			// 允许多余的逗号
		case "alias":
			if opts.HasAlias {
				return opts, &DefinitionError{Msg: "alias 重复声明"}
			}
			if !hasValue {
				return opts, &DefinitionError{Msg: "alias 需要一个值，如 alias=org"}
			}
			opts.Alias, opts.HasAlias = trimQuotes(value), true
		case "exp":
			if opts.HasExp {
				return opts, &DefinitionError{Msg: "exp 重复声明"}
			}
			if !hasValue {
				return opts, &DefinitionError{Msg: "exp 需要一个值，如 exp=.org.name"}
			}
			opts.Exp, opts.HasExp = value, true
		case "nested":
			if !hasValue {
				opts.Nested = true
				break
			}
			b, err := cast.ToBoolE(value)
			if err != nil {
				return opts, &DefinitionError{Msg: "nested 的值必须是布尔值: " + value}
			}
			opts.Nested = b
		default:
			return opts, &DefinitionError{Msg: "未知的注解参数 " + strings.TrimSpace(rawKey) + "，可选: alias, exp, nested"}
		}

		rest = next
	}

	return opts, nil
}

// ParseField 将原始注解校验为 FieldSpec
// name 为投影名，goName 为 Go 字段名（用于错误信息），declared 为字段的声明类型
func ParseField(name, goName string, declared TypeRef, opts Options) (FieldSpec, error) {
	if opts.HasAlias && opts.HasExp {
		return FieldSpec{}, fieldError(goName, "alias 与 exp 只能指定一个")
	}

	spec := FieldSpec{
		Name:     name,
		GoName:   goName,
		Declared: declared,
		Kind:     PlainName,
		Nested:   opts.Nested,
	}
	switch {
	case opts.HasAlias:
		spec.Kind, spec.Source = Alias, opts.Alias
	case opts.HasExp:
		spec.Kind, spec.Source = Expression, opts.Exp
	}

	if err := spec.Validate(); err != nil {
		return FieldSpec{}, err
	}
	return spec, nil
}

// ParseTag 解析 tag 并生成 FieldSpec，ok 为 false 表示字段被 `shape:"-"` 排除
func ParseTag(name, goName string, declared TypeRef, tag string) (spec FieldSpec, ok bool, err error) {
	opts, err := ParseOptions(tag)
	if err != nil {
		if de, isDef := err.(*DefinitionError); isDef {
			de.Field = goName
		}
		return FieldSpec{}, false, err
	}
	if opts.Skip {
		return FieldSpec{}, false, nil
	}
	spec, err = ParseField(name, goName, declared, opts)
	if err != nil {
		return FieldSpec{}, false, err
	}
	return spec, true, nil
}

// Validate 检查 FieldSpec 的结构性约束
func (f FieldSpec) Validate() error {
	field := f.GoName
	if field == "" {
		field = f.Name
	}

	if f.Name == "" {
		return fieldError(field, "投影名不能为空")
	}
	switch f.Kind {
	case PlainName:
		if f.Source != "" {
			return fieldError(field, "按字段名投影时不能带有 %q", f.Source)
		}
	case Alias:
		if strings.TrimSpace(f.Source) == "" {
			return fieldError(field, "alias 不能为空")
		}
	case Expression:
		if strings.TrimSpace(f.Source) == "" {
			return fieldError(field, "exp 不能为空")
		}
		if f.Nested {
			return fieldError(field, "exp 字段不能同时声明 nested，表达式不是对记录字段的直接引用")
		}
	default:
		return fieldError(field, "未知的投影方式 %d", f.Kind)
	}

	if f.Nested && !f.Declared.IsNamed() {
		return fieldError(field, "nested 字段的类型 %s 不是具名类型引用（最多允许一层 []T、*T 或 Option[T] 包装）", f.Declared.Expr)
	}
	return nil
}

// trimQuotes 去除成对的引号
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '`' && s[len(s)-1] == '`') ||
			(s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
