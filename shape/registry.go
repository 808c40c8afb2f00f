package shape

import (
	"fmt"
	"slices"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/exp/maps"
)

// Producer 返回某个记录类型的 shape 文本
type Producer func() string

// Lookup 按类型名查找 shape 生产函数
type Lookup interface {
	Lookup(name string) (Producer, bool)
}

// LookupFunc 函数形式的 Lookup
type LookupFunc func(name string) (Producer, bool)

func (f LookupFunc) Lookup(name string) (Producer, bool) {
	return f(name)
}

// MapLookup 固定文本的 Lookup，常用于测试
type MapLookup map[string]string

func (m MapLookup) Lookup(name string) (Producer, bool) {
	text, ok := m[name]
	if !ok {
		return nil, false
	}
	return func() string { return text }, true
}

// Registry shape 注册表
// 管理类型名到 shape 生产函数的映射，一个类型名只能注册一次
type Registry struct {
	mu sync.RWMutex

	// producers 类型名 -> 生产函数
	producers map[string]Producer

	// models 通过 RegisterModel 注册的类型
	models map[string]*model
}

type model struct {
	rt       *RecordType
	compiled *Compiled
}

// NewRegistry 创建新的注册表
func NewRegistry() *Registry {
	return &Registry{
		producers: make(map[string]Producer),
		models:    make(map[string]*model),
	}
}

// Register 注册生产函数
// 类型名已被注册时返回错误
func (r *Registry) Register(name string, producer Producer) error {
	if name == "" {
		return fmt.Errorf("shape: 类型名不能为空")
	}
	if producer == nil {
		return fmt.Errorf("shape: 类型 %s 的生产函数为空", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.producers[name]; ok {
		return fmt.Errorf("shape: 类型 %s 已注册", name)
	}
	r.producers[name] = producer
	return nil
}

// MustRegister 注册生产函数，失败时 panic
func (r *Registry) MustRegister(name string, producer Producer) {
	if err := r.Register(name, producer); err != nil {
		panic(err)
	}
}

// RegisterModel 编译并注册记录类型
// 嵌套引用在求值时通过注册表解析，注册完所有类型后应调用 Validate
func (r *Registry) RegisterModel(rt *RecordType) error {
	compiled, err := Compile(rt)
	if err != nil {
		return err
	}

	producer := func() string {
		text, err := r.render(compiled, 0)
		if err != nil {
			panic(err)
		}
		return text
	}
	if err := r.Register(rt.Name, producer); err != nil {
		return err
	}

	r.mu.Lock()
	r.models[rt.Name] = &model{rt: rt, compiled: compiled}
	r.mu.Unlock()
	return nil
}

// maxRenderDepth 通过注册表求值时的最大嵌套深度
const maxRenderDepth = 32

// render 求值已编译的模型，模型之间的嵌套直接递归，带深度保护
func (r *Registry) render(c *Compiled, depth int) (string, error) {
	if depth > maxRenderDepth {
		return "", &CycleError{Path: []string{c.Type, "..."}}
	}

	var nestedErr error
	text, err := c.Render(LookupFunc(func(name string) (Producer, bool) {
		r.mu.RLock()
		m, isModel := r.models[name]
		producer, ok := r.producers[name]
		r.mu.RUnlock()
		if !ok {
			return nil, false
		}
		if !isModel {
			return producer, true
		}
		return func() string {
			text, err := r.render(m.compiled, depth+1)
			if err != nil && nestedErr == nil {
				nestedErr = err
			}
			return text
		}, true
	}))
	if err != nil {
		return "", err
	}
	return text, nestedErr
}

// Validate 检查通过 RegisterModel 注册的类型：嵌套引用必须已注册且不能成环
func (r *Registry) Validate() error {
	r.mu.RLock()
	models := maps.Clone(r.models)
	r.mu.RUnlock()

	names := lo.Keys(models)
	slices.Sort(names)
	types := make([]*RecordType, 0, len(names))
	for _, name := range names {
		types = append(types, models[name].rt)
	}

	if err := CheckRefs(types, r); err != nil {
		return err
	}
	return CheckAcyclic(types)
}

// Unregister 取消注册
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.producers[name]; !ok {
		return fmt.Errorf("shape: 类型 %s 未注册", name)
	}
	delete(r.producers, name)
	delete(r.models, name)
	return nil
}

// Lookup 按类型名查找生产函数
func (r *Registry) Lookup(name string) (Producer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	producer, ok := r.producers[name]
	return producer, ok
}

// Shape 返回已注册类型的 shape 文本
// 对 RegisterModel 注册的类型，嵌套错误以 error 返回而不是 panic
func (r *Registry) Shape(name string) (string, error) {
	r.mu.RLock()
	m, isModel := r.models[name]
	producer, ok := r.producers[name]
	r.mu.RUnlock()

	if !ok {
		return "", &UnknownTypeError{TypeName: name}
	}
	if isModel {
		return r.render(m.compiled, 0)
	}
	return producer(), nil
}

// Names 返回所有已注册的类型名（已排序）
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := lo.Keys(r.producers)
	slices.Sort(names)
	return names
}

// 全局注册表，生成的代码在 init 中注册到这里
var globalRegistry = NewRegistry()

// Global 返回全局注册表
func Global() *Registry {
	return globalRegistry
}

// Register 向全局注册表注册生产函数
func Register(name string, producer Producer) error {
	return globalRegistry.Register(name, producer)
}

// MustRegister 向全局注册表注册生产函数，失败时 panic
func MustRegister(name string, producer Producer) {
	globalRegistry.MustRegister(name, producer)
}
