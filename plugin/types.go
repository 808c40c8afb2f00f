package plugin

import (
	"go/ast"
	"go/token"

	"github.com/donutnomad/gg"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// TargetKind 注解目标的类型
type TargetKind int

const (
	TargetStruct TargetKind = iota + 1 // 结构体
	TargetVar                          // 包级变量
	TargetConst                        // 包级常量
)

func (k TargetKind) String() string {
	switch k {
	case TargetStruct:
		return "struct"
	case TargetVar:
		return "var"
	case TargetConst:
		return "const"
	default:
		return "unknown"
	}
}

// ParamDef 注解参数的元信息
type ParamDef struct {
	Name        string
	Required    bool
	Default     string
	Description string
}

// Annotation 解析后的注解，如 @Shape(naming=none)
type Annotation struct {
	Name   string
	Params map[string]string
	Raw    string
}

// Target 注解的目标
type Target struct {
	Kind        TargetKind
	Name        string
	PackageName string
	FilePath    string
	Position    token.Position

	// Node 为 *ast.TypeSpec 或 *ast.ValueSpec
	Node ast.Node
	// File 目标所在文件的 AST，用于解析 import
	File *ast.File
}

// AnnotatedTarget 带注解的目标
type AnnotatedTarget struct {
	Target       *Target
	Annotations  []*Annotation
	ParsedParams any // 由 Run 按生成器的参数结构体填充
}

// ScanResult 扫描结果
type ScanResult struct {
	Structs []*AnnotatedTarget
	Vars    []*AnnotatedTarget
	Consts  []*AnnotatedTarget

	// PackageConfigs 包级配置，key: 包目录
	PackageConfigs map[string]*PackageConfig
}

// All 返回所有带注解的目标
func (r *ScanResult) All() []*AnnotatedTarget {
	result := make([]*AnnotatedTarget, 0, len(r.Structs)+len(r.Vars)+len(r.Consts))
	result = append(result, r.Structs...)
	result = append(result, r.Vars...)
	result = append(result, r.Consts...)
	return result
}

// ByAnnotation 按注解名称过滤
func (r *ScanResult) ByAnnotation(name string) []*AnnotatedTarget {
	var result []*AnnotatedTarget
	for _, t := range r.All() {
		if HasAnnotation(t.Annotations, name) {
			result = append(result, t)
		}
	}
	return result
}

// GenerateContext 传递给 Generator 的上下文
type GenerateContext struct {
	Targets        []*AnnotatedTarget
	PackageConfigs map[string]*PackageConfig
	DefaultOutput  string            // 命令行指定的默认输出路径（最低优先级）
	Options        map[string]string // 全局选项，包级指令优先
	Logger         *zap.SugaredLogger
}

// GetPackageConfig 获取文件所在包的配置
func (c *GenerateContext) GetPackageConfig(pkgDir string) *PackageConfig {
	if c.PackageConfigs == nil {
		return nil
	}
	return c.PackageConfigs[pkgDir]
}

// Log 返回日志，未设置时为 no-op
func (c *GenerateContext) Log() *zap.SugaredLogger {
	if c.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return c.Logger
}

// GenerateResult 生成结果
// Generator 返回 gg 定义，由 Run 按输出文件合并后写入
type GenerateResult struct {
	// Definitions key: 输出文件路径
	Definitions map[string]*gg.Generator

	// Errors 单个目标的错误，不影响其它目标
	Errors *multierror.Error

	Skipped int
}

// NewGenerateResult 创建新的生成结果
func NewGenerateResult() *GenerateResult {
	return &GenerateResult{
		Definitions: make(map[string]*gg.Generator),
	}
}

// AddDefinition 添加 gg 定义
func (r *GenerateResult) AddDefinition(path string, gen *gg.Generator) {
	if r.Definitions == nil {
		r.Definitions = make(map[string]*gg.Generator)
	}
	r.Definitions[path] = gen
}

// AddError 添加错误
func (r *GenerateResult) AddError(err error) {
	r.Errors = multierror.Append(r.Errors, err)
}

// HasErrors 是否有错误
func (r *GenerateResult) HasErrors() bool {
	return r.Errors.ErrorOrNil() != nil
}

// PackageConfig 包级生成配置
// 通过 // go:shapegen: 注释定义，示例:
//
//	// go:shapegen: -output `$FILE_shape`
//	// go:shapegen: -naming none plugin:query -output `queries_gen`
type PackageConfig struct {
	PackageDir string

	// DefaultOutput 对所有插件生效的输出路径
	DefaultOutput string

	// PluginOutputs key: 插件名（小写）
	PluginOutputs map[string]string

	// Options 其余 -key value 形式的选项，如 -naming none
	Options map[string]string
}

// GetPluginOutput 获取插件的输出路径，插件配置优先
func (c *PackageConfig) GetPluginOutput(pluginName string) string {
	if c == nil {
		return ""
	}
	if output, ok := c.PluginOutputs[pluginName]; ok {
		return output
	}
	return c.DefaultOutput
}

// GetOption 获取选项
func (c *PackageConfig) GetOption(key string) string {
	if c == nil {
		return ""
	}
	return c.Options[key]
}
