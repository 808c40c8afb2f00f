package shape

import (
	"runtime"
	"sync"
)

// Query 一处模板的展开结果
// 每个 Query 拥有独立的缓存单元，模板只展开一次。
// 生成的代码为每个 @ShapedQuery 常量声明一个包级 Query。
type Query struct {
	template  string
	namespace string
	lookup    Lookup // nil 表示使用全局注册表
	cell      Cell[string]
}

// QueryOption Query 选项
type QueryOption func(*Query)

// WithLookup 指定查找 shape 的注册表，默认使用全局注册表
func WithLookup(lookup Lookup) QueryOption {
	return func(q *Query) {
		q.lookup = lookup
	}
}

// WithNamespace 指定占位符命名空间，默认 shape
func WithNamespace(namespace string) QueryOption {
	return func(q *Query) {
		q.namespace = namespace
	}
}

// NewQuery 创建模板展开单元，展开延迟到第一次读取
func NewQuery(template string, opts ...QueryOption) *Query {
	q := &Query{template: template}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Template 返回原始模板
func (q *Query) Template() string {
	return q.template
}

// Text 返回展开后的查询文本
// 第一次调用时展开并缓存，之后直接返回缓存结果
func (q *Query) Text() (string, error) {
	return q.cell.Get(q.expand)
}

// MustText 返回展开后的查询文本，模板有定义错误时 panic
func (q *Query) MustText() string {
	text, err := q.Text()
	if err != nil {
		panic(err)
	}
	return text
}

func (q *Query) expand() (string, error) {
	lookup := q.lookup
	if lookup == nil {
		lookup = globalRegistry
	}
	e, err := NewExpander(lookup, q.namespace)
	if err != nil {
		return "", err
	}
	return e.Expand(q.template)
}

// siteKey 调用点标识
type siteKey struct {
	pc       uintptr
	template string
}

// sites 调用点 -> Query
var sites sync.Map

// At 展开模板，缓存单元由调用点决定
// 同一调用点重复执行返回同一结果；不同调用点即使模板相同也各自缓存。
// 模板应当是字面量，使用全局注册表和默认命名空间。
//
//go:noinline
func At(template string) (string, error) {
	return siteQuery(template).Text()
}

// MustAt 与 At 相同，模板有定义错误时 panic
//
//go:noinline
func MustAt(template string) string {
	return siteQuery(template).MustText()
}

// siteQuery 查找调用点对应的 Query，跳过 siteQuery 自身和 At/MustAt 两层
//
//go:noinline
func siteQuery(template string) *Query {
	pc, _, _, _ := runtime.Caller(2)
	key := siteKey{pc: pc, template: template}

	if q, ok := sites.Load(key); ok {
		return q.(*Query)
	}
	q, _ := sites.LoadOrStore(key, NewQuery(template))
	return q.(*Query)
}
