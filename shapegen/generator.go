package shapegen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/donutnomad/shapegen/plugin"
	"github.com/samber/lo"
)

const generatorName = "shapegen"

const (
	annotationShape = "Shape"
	annotationQuery = "ShapedQuery"
)

// DefaultOutput 包内默认输出文件
const DefaultOutput = "shape_gen.go"

// ShapeParams @Shape 注解参数
type ShapeParams struct {
	Name   string `param:"name=name,required=false,default=,description=注册名，占位符 shape::<注册名> 引用它，默认为结构体名"`
	Naming string `param:"name=naming,required=false,default=,description=字段命名策略: snake 或 none，默认 snake，json tag 的名字优先"`
	Output string `param:"name=output,required=false,default=,description=输出文件，支持 $FILE 和 $PACKAGE"`
}

// QueryParams @ShapedQuery 注解参数
type QueryParams struct {
	Name      string `param:"name=name,required=false,default=,description=生成的变量名，默认去掉 Template 后缀或追加 Query"`
	Namespace string `param:"name=namespace,required=false,default=,description=占位符命名空间，默认 shape"`
	Output    string `param:"name=output,required=false,default=,description=输出文件，支持 $FILE 和 $PACKAGE"`
}

// ShapeGenerator 实现 plugin.Generator 接口
// @Shape 结构体生成 Shape() 方法和注册代码，@ShapedQuery 常量生成展开单元
type ShapeGenerator struct {
	plugin.BaseGenerator
}

func NewShapeGenerator() *ShapeGenerator {
	return &ShapeGenerator{
		BaseGenerator: *plugin.NewBaseGenerator(
			generatorName,
			[]string{annotationShape, annotationQuery},
			[]plugin.TargetKind{plugin.TargetStruct, plugin.TargetVar, plugin.TargetConst},
			nil, // 两个注解参数不同，由 Analyze 分别解析
		),
	}
}

// ParamDefs 两个注解的参数合并展示
func (g *ShapeGenerator) ParamDefs() []plugin.ParamDef {
	defs := plugin.ParseParamsFromStruct(ShapeParams{})
	for _, def := range plugin.ParseParamsFromStruct(QueryParams{}) {
		if !lo.ContainsBy(defs, func(d plugin.ParamDef) bool { return d.Name == def.Name }) {
			defs = append(defs, def)
		}
	}
	return defs
}

// Generate 执行代码生成
func (g *ShapeGenerator) Generate(ctx *plugin.GenerateContext) (*plugin.GenerateResult, error) {
	result := plugin.NewGenerateResult()
	if len(ctx.Targets) == 0 {
		return result, nil
	}

	project, errs := Analyze(ctx.Targets, &AnalyzeOptions{
		PackageConfigs: ctx.PackageConfigs,
		DefaultOutput:  ctx.DefaultOutput,
		Options:        ctx.Options,
	})
	for _, err := range errs {
		result.AddError(err)
	}
	if project == nil {
		return result, nil
	}

	files := project.Files()
	for _, path := range lo.Keys(files) {
		def, err := project.Emit(files[path])
		if err != nil {
			result.AddError(fmt.Errorf("生成 %s 失败: %w", path, err))
			continue
		}
		result.AddDefinition(path, def)
		ctx.Log().Debugw("生成 shape 定义", "path", path,
			"models", len(files[path].Models), "queries", len(files[path].Queries))
	}

	return result, nil
}

// OutputFile 同一输出文件中的内容
type OutputFile struct {
	Path    string
	Models  []*Model
	Queries []*QueryDef
}

// Files 按输出路径分组，组内按源码位置排序
func (p *Project) Files() map[string]*OutputFile {
	files := make(map[string]*OutputFile)
	get := func(path string) *OutputFile {
		f, ok := files[path]
		if !ok {
			f = &OutputFile{Path: path}
			files[path] = f
		}
		return f
	}
	for _, m := range p.Models {
		f := get(m.Output)
		f.Models = append(f.Models, m)
	}
	for _, q := range p.Queries {
		f := get(q.Output)
		f.Queries = append(f.Queries, q)
	}

	for _, f := range files {
		slices.SortFunc(f.Models, func(a, b *Model) int {
			return strings.Compare(a.TypeName, b.TypeName)
		})
		slices.SortFunc(f.Queries, func(a, b *QueryDef) int {
			return strings.Compare(a.VarName, b.VarName)
		})
	}
	return files
}
