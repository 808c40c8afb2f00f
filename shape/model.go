package shape

// ProjectionKind 字段的投影方式
type ProjectionKind int

const (
	PlainName  ProjectionKind = iota // 按字段名投影（默认）
	Alias                            // 投影为源端的另一个名字
	Expression                       // 投影为任意计算表达式
)

func (k ProjectionKind) String() string {
	switch k {
	case PlainName:
		return "name"
	case Alias:
		return "alias"
	case Expression:
		return "exp"
	default:
		return "unknown"
	}
}

// Wrapper 声明类型外层的包装
type Wrapper int

const (
	WrapNone       Wrapper = iota // T
	WrapCollection                // []T, [N]T
	WrapOptional                  // *T, Option[T]
)

func (w Wrapper) String() string {
	switch w {
	case WrapNone:
		return "none"
	case WrapCollection:
		return "collection"
	case WrapOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// TypeRef 字段声明类型
// Name 为空表示不是具名类型引用（map、func、多层包装等）
type TypeRef struct {
	Name    string  // 具名类型，如 Organization、models.Organization
	Wrapper Wrapper // 外层包装
	Expr    string  // 原始类型文本，用于错误信息
}

// IsNamed 是否可以解析为（最多一层包装的）具名类型
func (t TypeRef) IsNamed() bool {
	return t.Name != ""
}

// Named 构造无包装的具名类型引用
func Named(name string) TypeRef {
	return TypeRef{Name: name, Expr: name}
}

// CollectionOf 构造 collection-of 具名类型引用
func CollectionOf(name string) TypeRef {
	return TypeRef{Name: name, Wrapper: WrapCollection, Expr: "[]" + name}
}

// OptionalOf 构造 optional-of 具名类型引用
func OptionalOf(name string) TypeRef {
	return TypeRef{Name: name, Wrapper: WrapOptional, Expr: "*" + name}
}

// Opaque 构造无法解析为具名类型的引用
func Opaque(expr string) TypeRef {
	return TypeRef{Expr: expr}
}

// FieldSpec 单个字段的投影意图
type FieldSpec struct {
	Name     string         // 投影名（查询结果中的 key）
	GoName   string         // Go 字段名，仅用于错误信息
	Declared TypeRef        // 声明类型
	Kind     ProjectionKind // 投影方式
	Source   string         // Alias 的源字段名或 Expression 的表达式
	Nested   bool           // 是否与嵌套类型的 shape 组合
}

// NestedType 嵌套类型名，非嵌套字段返回空字符串
func (f FieldSpec) NestedType() string {
	if !f.Nested {
		return ""
	}
	return f.Declared.Name
}

// RecordType 带有有序字段的记录类型
// 字段顺序决定了投影文本的顺序
type RecordType struct {
	Name   string
	Fields []FieldSpec
}

// NestedRefs 按字段顺序返回引用的嵌套类型（去重）
func (r *RecordType) NestedRefs() []string {
	var refs []string
	seen := make(map[string]bool)
	for _, f := range r.Fields {
		name := f.NestedType()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, name)
	}
	return refs
}
