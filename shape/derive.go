package shape

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// deriveKey 反射模型缓存的 key
type deriveKey struct {
	t      reflect.Type
	naming Naming
	name   string
}

var modelCache sync.Map // map[deriveKey]*RecordType

// derivedNames 通过 WithName 改名的类型，嵌套引用按这里的名字解析
var derivedNames sync.Map // map[reflect.Type]string

// DeriveOption 反射派生选项
type DeriveOption func(*deriveConfig)

type deriveConfig struct {
	naming   Naming
	name     string
	registry *Registry
}

// WithNaming 设置命名策略，默认 snake
func WithNaming(naming Naming) DeriveOption {
	return func(c *deriveConfig) {
		c.naming = naming
	}
}

// WithName 使用指定的类型名代替 Go 类型名
// 不同包的同名类型需要改名后才能注册到同一个注册表。
// 引用该类型的结构体要在改名之后派生，嵌套引用才会使用新名字。
// 同一类型只能使用一个名字。
func WithName(name string) DeriveOption {
	return func(c *deriveConfig) {
		c.name = name
	}
}

// WithRegistry 指定 RegisterType 注册到的注册表，默认为全局注册表
func WithRegistry(r *Registry) DeriveOption {
	return func(c *deriveConfig) {
		c.registry = r
	}
}

func newDeriveConfig(opts []DeriveOption) *deriveConfig {
	c := &deriveConfig{naming: NamingSnake}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Derive 通过反射从结构体的 shape tag 派生记录类型
// 不需要运行代码生成器，适合测试或无法生成代码的场景
func Derive[T any](opts ...DeriveOption) (*RecordType, error) {
	return DeriveType(reflect.TypeFor[T](), opts...)
}

// DeriveType 与 Derive 相同，接收 reflect.Type
// 结果按类型缓存，同一类型只解析一次
func DeriveType(t reflect.Type, opts ...DeriveOption) (*RecordType, error) {
	cfg := newDeriveConfig(opts)

	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, &DefinitionError{Type: t.String(), Msg: "只支持结构体类型"}
	}

	name := cfg.name
	if name == "" {
		name = t.Name()
	}
	if name == "" {
		return nil, &DefinitionError{Type: t.String(), Msg: "匿名结构体需要通过 WithName 指定类型名"}
	}

	if cfg.name != "" {
		if prev, loaded := derivedNames.LoadOrStore(t, name); loaded && prev != name {
			return nil, &DefinitionError{Type: t.String(), Msg: fmt.Sprintf("已使用名称 %s 派生，不能再改名为 %s", prev, name)}
		}
	}

	key := deriveKey{t: t, naming: cfg.naming, name: name}
	if rt, ok := modelCache.Load(key); ok {
		return rt.(*RecordType), nil
	}

	fields, err := deriveFields(t, cfg.naming, map[reflect.Type]bool{t: true})
	if err != nil {
		if de, ok := err.(*DefinitionError); ok && de.Type == "" {
			de.Type = name
		}
		return nil, err
	}

	rt := &RecordType{Name: name, Fields: fields}
	actual, _ := modelCache.LoadOrStore(key, rt)
	return actual.(*RecordType), nil
}

// RegisterType 派生并注册记录类型
func RegisterType[T any](opts ...DeriveOption) error {
	rt, err := Derive[T](opts...)
	if err != nil {
		return err
	}
	registry := newDeriveConfig(opts).registry
	if registry == nil {
		registry = globalRegistry
	}
	return registry.RegisterModel(rt)
}

// deriveFields 按声明顺序收集字段，嵌入的结构体与 encoding/json 一样展开
func deriveFields(t reflect.Type, naming Naming, stack map[reflect.Type]bool) ([]FieldSpec, error) {
	var fields []FieldSpec

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, hasTag := sf.Tag.Lookup(TagName)

		if sf.Anonymous && !hasTag {
			ft := sf.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				if stack[ft] {
					return nil, fieldError(sf.Name, "嵌入结构体 %s 成环", ft)
				}
				stack[ft] = true
				embedded, err := deriveFields(ft, naming, stack)
				delete(stack, ft)
				if err != nil {
					return nil, err
				}
				fields = append(fields, embedded...)
				continue
			}
		}

		if !sf.IsExported() {
			continue
		}

		name, skip := ProjectionName(sf.Name, sf.Tag.Get("json"), naming)
		if skip {
			continue
		}

		spec, ok, err := ParseTag(name, sf.Name, typeRefOf(sf.Type), tag)
		if err != nil {
			return nil, err
		}
		if ok {
			fields = append(fields, spec)
		}
	}

	return fields, nil
}

// typeRefOf 将反射类型转换为 TypeRef，最多拆开一层切片、数组、指针或 Option[T]
func typeRefOf(t reflect.Type) TypeRef {
	named := func(e reflect.Type) bool {
		return e.Kind() == reflect.Struct && e.Name() != "" && !isOptionName(e.Name())
	}

	switch {
	case isOptionName(t.Name()):
		elem, ok := optionElem(t)
		if !ok || !named(elem) {
			return Opaque(t.String())
		}
		ref := OptionalOf(typeName(elem))
		ref.Expr = t.String()
		return ref
	case named(t):
		return Named(typeName(t))
	case t.Kind() == reflect.Ptr && named(t.Elem()):
		return OptionalOf(typeName(t.Elem()))
	case (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) && named(t.Elem()):
		ref := CollectionOf(typeName(t.Elem()))
		ref.Expr = t.String()
		return ref
	default:
		return Opaque(fmt.Sprint(t))
	}
}

// typeName 类型的注册名
func typeName(t reflect.Type) string {
	if name, ok := derivedNames.Load(t); ok {
		return name.(string)
	}
	return t.Name()
}

// isOptionName 泛型实例化后的类型名形如 Option[pkg/path.T]
func isOptionName(name string) bool {
	return strings.HasPrefix(name, "Option[") && strings.HasSuffix(name, "]")
}

// optionElem 取出 Option[T] 的 T
// reflect 拿不到类型实参，按类型名在字段（T 或 *T）中查找
func optionElem(t reflect.Type) (reflect.Type, bool) {
	if t.Kind() != reflect.Struct {
		return nil, false
	}
	arg := strings.TrimSuffix(strings.TrimPrefix(t.Name(), "Option["), "]")
	for i := 0; i < t.NumField(); i++ {
		ft := t.Field(i).Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if ft.Name() != "" && ft.PkgPath()+"."+ft.Name() == arg {
			return ft, true
		}
	}
	return nil, false
}
