package shapegen

import (
	"fmt"
	"go/token"

	"github.com/donutnomad/shapegen/shape"
)

// Model 一个 @Shape 结构体
type Model struct {
	Key      string // <导入路径>.<类型名>，嵌套引用按它解析
	Name     string // 注册名，占位符 shape::<Name> 引用它
	TypeName string
	PkgPath  string
	PkgName  string
	FilePath string
	Output   string
	Position token.Position
	Record   *shape.RecordType // Record.Name 为 Key
}

// QueryDef 一个 @ShapedQuery 常量或变量
type QueryDef struct {
	VarName   string // 生成的变量名
	Source    string // 模板所在的常量或变量名
	Template  string
	Namespace string
	Expanded  string // 生成期展开的结果
	PkgName   string
	FilePath  string
	Output    string
	Position  token.Position
}

// Project 一次生成涉及的全部 shape
type Project struct {
	Models  []*Model
	Queries []*QueryDef

	resolver *shape.Resolver
	byKey    map[string]*Model
	byName   map[string]*Model
}

func newProject(models []*Model) (*Project, error) {
	p := &Project{
		Models: models,
		byKey:  make(map[string]*Model, len(models)),
		byName: make(map[string]*Model, len(models)),
	}

	records := make([]*shape.RecordType, 0, len(models))
	for _, m := range models {
		p.byKey[m.Key] = m
		p.byName[m.Name] = m
		records = append(records, m.Record)
	}

	resolver, err := shape.NewResolver(records)
	if err != nil {
		return nil, err
	}
	p.resolver = resolver
	return p, nil
}

// Model 按注册名查找
func (p *Project) Model(name string) (*Model, bool) {
	m, ok := p.byName[name]
	return m, ok
}

// Lookup 按注册名查找 shape，实现 shape.Lookup
func (p *Project) Lookup(name string) (shape.Producer, bool) {
	m, ok := p.byName[name]
	if !ok {
		return nil, false
	}
	return p.resolver.Lookup(m.Key)
}

// Shape 返回注册名对应的完整投影文本
func (p *Project) Shape(name string) (string, error) {
	m, ok := p.byName[name]
	if !ok {
		return "", &shape.UnknownTypeError{TypeName: name}
	}
	return p.resolver.Shape(m.Key)
}

// Compiled 返回模型的编译结果
func (p *Project) Compiled(m *Model) (*shape.Compiled, error) {
	c, ok := p.resolver.Compiled(m.Key)
	if !ok {
		return nil, fmt.Errorf("模型 %s 未编译", m.Key)
	}
	return c, nil
}
