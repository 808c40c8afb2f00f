package plugin

import "reflect"

// Generator 代码生成器
type Generator interface {
	// Name 生成器名称，也用于 go:shapegen: 中的 plugin:<name>
	Name() string

	// Annotations 支持的注解，一个注解只能绑定一个生成器
	Annotations() []string

	// SupportedTargets 支持的目标类型
	SupportedTargets() []TargetKind

	// ParamDefs 注解参数定义
	ParamDefs() []ParamDef

	// NewParams 返回参数结构体的新实例（指针），nil 表示不需要参数
	NewParams() any

	// Priority 数字越小优先级越高，合并到同一文件时排在前面
	Priority() int

	// Generate 执行代码生成
	Generate(ctx *GenerateContext) (*GenerateResult, error)
}

// BaseGenerator 提供 Generator 除 Generate 以外的实现，可嵌入
type BaseGenerator struct {
	name        string
	annotations []string
	targets     []TargetKind
	paramDefs   []ParamDef
	paramsProto any
	priority    int
}

// NewBaseGenerator 创建基础生成器
// paramsProto 为参数结构体的零值，参数定义从它的 param tag 解析；可以为 nil
func NewBaseGenerator(name string, annotations []string, targets []TargetKind, paramsProto any) *BaseGenerator {
	g := &BaseGenerator{
		name:        name,
		annotations: annotations,
		targets:     targets,
		paramsProto: paramsProto,
		priority:    100,
	}
	if paramsProto != nil {
		g.paramDefs = ParseParamsFromStruct(paramsProto)
	}
	return g
}

func (g *BaseGenerator) Name() string {
	return g.name
}

func (g *BaseGenerator) Annotations() []string {
	return g.annotations
}

func (g *BaseGenerator) SupportedTargets() []TargetKind {
	return g.targets
}

func (g *BaseGenerator) ParamDefs() []ParamDef {
	return g.paramDefs
}

// NewParams 通过反射创建参数结构体的新实例
func (g *BaseGenerator) NewParams() any {
	if g.paramsProto == nil {
		return nil
	}
	typ := reflect.TypeOf(g.paramsProto)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	return reflect.New(typ).Interface()
}

func (g *BaseGenerator) Priority() int {
	return g.priority
}

// SetPriority 设置优先级
func (g *BaseGenerator) SetPriority(priority int) *BaseGenerator {
	g.priority = priority
	return g
}

// Supports 是否支持目标类型
func (g *BaseGenerator) Supports(kind TargetKind) bool {
	for _, k := range g.targets {
		if k == kind {
			return true
		}
	}
	return false
}
