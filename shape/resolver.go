package shape

import (
	"fmt"
	"sync"
)

// DefaultMaxDepth Resolver 默认的最大嵌套深度
const DefaultMaxDepth = 32

// Resolver 在生成期求值一组记录类型的 shape 文本
// 构造时完成编译、引用检查和环检查，求值结果按类型缓存
type Resolver struct {
	compiled map[string]*Compiled
	order    []string
	fallback Lookup
	maxDepth int

	mu    sync.Mutex
	cache map[string]string
}

// ResolverOption Resolver 选项
type ResolverOption func(*Resolver)

// WithFallback 在本组类型之外查找嵌套类型，例如其它包已注册的 shape
func WithFallback(lookup Lookup) ResolverOption {
	return func(r *Resolver) {
		r.fallback = lookup
	}
}

// WithMaxDepth 设置最大嵌套深度
func WithMaxDepth(depth int) ResolverOption {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// NewResolver 编译并检查一组记录类型
func NewResolver(types []*RecordType, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		compiled: make(map[string]*Compiled, len(types)),
		maxDepth: DefaultMaxDepth,
		cache:    make(map[string]string, len(types)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, rt := range types {
		if _, ok := r.compiled[rt.Name]; ok {
			return nil, &DefinitionError{Type: rt.Name, Msg: "记录类型重复定义"}
		}
		c, err := Compile(rt)
		if err != nil {
			return nil, err
		}
		r.compiled[rt.Name] = c
		r.order = append(r.order, rt.Name)
	}

	if err := CheckRefs(types, r.fallback); err != nil {
		return nil, err
	}
	if err := CheckAcyclic(types); err != nil {
		return nil, err
	}
	return r, nil
}

// Names 按定义顺序返回类型名
func (r *Resolver) Names() []string {
	return append([]string(nil), r.order...)
}

// Compiled 返回类型的编译结果
func (r *Resolver) Compiled(name string) (*Compiled, bool) {
	c, ok := r.compiled[name]
	return c, ok
}

// Shape 返回类型的完整 shape 文本
func (r *Resolver) Shape(name string) (string, error) {
	return r.resolve(name, 0)
}

// Lookup 实现 Lookup 接口，可直接用于 Expander
func (r *Resolver) Lookup(name string) (Producer, bool) {
	if _, ok := r.compiled[name]; !ok {
		if r.fallback != nil {
			return r.fallback.Lookup(name)
		}
		return nil, false
	}
	return func() string {
		text, err := r.Shape(name)
		if err != nil {
			panic(err)
		}
		return text
	}, true
}

func (r *Resolver) resolve(name string, depth int) (string, error) {
	if depth > r.maxDepth {
		return "", fmt.Errorf("shape: 类型 %s 的嵌套深度超过 %d: %w", name, r.maxDepth, ErrDefinition)
	}

	r.mu.Lock()
	text, ok := r.cache[name]
	r.mu.Unlock()
	if ok {
		return text, nil
	}

	c, ok := r.compiled[name]
	if !ok {
		if r.fallback != nil {
			if producer, found := r.fallback.Lookup(name); found {
				return producer(), nil
			}
		}
		return "", &UnknownTypeError{TypeName: name}
	}

	var nestedErr error
	text, err := c.Render(LookupFunc(func(ref string) (Producer, bool) {
		if _, local := r.compiled[ref]; !local {
			if r.fallback == nil {
				return nil, false
			}
			return r.fallback.Lookup(ref)
		}
		return func() string {
			nested, err := r.resolve(ref, depth+1)
			if err != nil && nestedErr == nil {
				nestedErr = err
			}
			return nested
		}, true
	}))
	if err != nil {
		return "", err
	}
	if nestedErr != nil {
		return "", nestedErr
	}

	r.mu.Lock()
	r.cache[name] = text
	r.mu.Unlock()
	return text, nil
}
