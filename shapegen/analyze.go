package shapegen

import (
	"errors"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"slices"
	"strings"

	"github.com/donutnomad/shapegen/internal/pkgresolver"
	"github.com/donutnomad/shapegen/internal/structparse"
	"github.com/donutnomad/shapegen/plugin"
	"github.com/donutnomad/shapegen/shape"
	"github.com/samber/lo"
)

// AnalyzeOptions 分析选项
type AnalyzeOptions struct {
	PackageConfigs map[string]*plugin.PackageConfig
	DefaultOutput  string            // 命令行指定的输出路径
	Options        map[string]string // 全局选项 naming、namespace
}

func (o *AnalyzeOptions) packageConfig(dir string) *plugin.PackageConfig {
	if o == nil || o.PackageConfigs == nil {
		return nil
	}
	return o.PackageConfigs[dir]
}

// option 包级指令优先于全局选项
func (o *AnalyzeOptions) option(dir, key string) string {
	if v := o.packageConfig(dir).GetOption(key); v != "" {
		return v
	}
	if o == nil {
		return ""
	}
	return o.Options[key]
}

// analyzer 在一次分析中共享解析缓存
type analyzer struct {
	opts     *AnalyzeOptions
	contexts map[string]*structparse.ParseContext // 项目根目录 -> 解析上下文
}

// Analyze 解析 @Shape 结构体和 @ShapedQuery 模板
// 单个目标的错误收集后返回，不影响其它目标；嵌套引用无法解析或成环时返回 nil Project
func Analyze(targets []*plugin.AnnotatedTarget, opts *AnalyzeOptions) (*Project, []error) {
	a := &analyzer{opts: opts, contexts: make(map[string]*structparse.ParseContext)}
	var errs []error

	var models []*Model
	for _, at := range targets {
		if at.Target.Kind != plugin.TargetStruct || !plugin.HasAnnotation(at.Annotations, annotationShape) {
			continue
		}
		m, err := a.analyzeModel(at)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", at.Target.Position, at.Target.Name, err))
			continue
		}
		models = append(models, m)
	}

	models, dupErrs := dedupeNames(models)
	errs = append(errs, dupErrs...)

	project, err := newProject(models)
	if err != nil {
		return nil, append(errs, err)
	}

	for _, at := range targets {
		if at.Target.Kind == plugin.TargetStruct || !plugin.HasAnnotation(at.Annotations, annotationQuery) {
			continue
		}
		q, err := a.analyzeQuery(at, project)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %s: %w", at.Target.Position, at.Target.Name, err))
			continue
		}
		project.Queries = append(project.Queries, q)
	}
	errs = append(errs, checkQueryNames(project.Queries)...)

	return project, errs
}

// dedupeNames 注册名必须唯一，重复的模型按源码位置保留第一个
func dedupeNames(models []*Model) ([]*Model, []error) {
	slices.SortStableFunc(models, func(a, b *Model) int {
		if c := strings.Compare(a.Position.Filename, b.Position.Filename); c != 0 {
			return c
		}
		return a.Position.Offset - b.Position.Offset
	})

	var errs []error
	seen := make(map[string]*Model, len(models))
	kept := lo.Filter(models, func(m *Model, _ int) bool {
		if prev, ok := seen[m.Name]; ok {
			errs = append(errs, fmt.Errorf("%s: shape 名称 %q 已被 %s 使用，请通过 @Shape(name=...) 指定其它名称",
				m.Position, m.Name, prev.Key))
			return false
		}
		seen[m.Name] = m
		return true
	})
	return kept, errs
}

func checkQueryNames(queries []*QueryDef) []error {
	var errs []error
	seen := make(map[string]*QueryDef)
	for _, q := range queries {
		key := filepath.Dir(q.FilePath) + "#" + q.VarName
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("%s: 生成的变量 %s 与 %s 的重复", q.Position, q.VarName, prev.Source))
			continue
		}
		seen[key] = q
	}
	return errs
}

func (a *analyzer) parseContext(dir string) *structparse.ParseContext {
	root, err := pkgresolver.FindProjectRoot(dir)
	if err != nil {
		root = ""
	}
	if c, ok := a.contexts[root]; ok {
		return c
	}
	var resolver *pkgresolver.Resolver
	if root != "" {
		resolver, _ = pkgresolver.NewResolver(root)
	}
	c := structparse.NewParseContext(resolver, structparse.WithKeepTag(shape.TagName))
	a.contexts[root] = c
	return c
}

// pkgPathOf 目录的导入路径，没有 go.mod 时以目录作为包标识
func pkgPathOf(c *structparse.ParseContext, dir string) string {
	if r := c.Resolver(); r != nil {
		if path, err := r.ImportPathOf(dir); err == nil {
			return path
		}
	}
	return dir
}

func (a *analyzer) analyzeModel(at *plugin.AnnotatedTarget) (*Model, error) {
	ann := plugin.GetAnnotation(at.Annotations, annotationShape)
	var params ShapeParams
	if err := plugin.ParseAnnotationParams(ann, &params, plugin.ParseParamsFromStruct(ShapeParams{})); err != nil {
		return nil, err
	}

	dir := filepath.Dir(at.Target.FilePath)
	pkgConfig := a.opts.packageConfig(dir)

	namingText := params.Naming
	if namingText == "" {
		namingText = a.opts.option(dir, "naming")
	}
	naming, err := shape.ParseNaming(namingText)
	if err != nil {
		return nil, err
	}

	name := params.Name
	if name == "" {
		name = at.Target.Name
	}
	if !token.IsIdentifier(name) {
		return nil, fmt.Errorf("shape 名称 %q 不是合法的标识符", name)
	}

	pctx := a.parseContext(dir)
	info, err := pctx.ParseStruct(at.Target.FilePath, at.Target.Name)
	if err != nil {
		return nil, err
	}
	pkgPath := pkgPathOf(pctx, dir)

	var fields []shape.FieldSpec
	for _, f := range info.Fields {
		spec, ok, err := fieldSpec(f, naming, pkgPath)
		if err != nil {
			return nil, err
		}
		if ok {
			fields = append(fields, spec)
		}
	}

	var cmdOutput string
	if a.opts != nil {
		cmdOutput = a.opts.DefaultOutput
	}
	key := pkgPath + "." + at.Target.Name
	return &Model{
		Key:      key,
		Name:     name,
		TypeName: at.Target.Name,
		PkgPath:  pkgPath,
		PkgName:  info.PackageName,
		FilePath: at.Target.FilePath,
		Output:   plugin.GetOutputPath(at.Target, ann, DefaultOutput, pkgConfig, generatorName, cmdOutput),
		Position: at.Target.Position,
		Record:   &shape.RecordType{Name: key, Fields: fields},
	}, nil
}

// fieldSpec 将解析出的字段转换为 FieldSpec，ok 为 false 表示字段不参与投影
func fieldSpec(f structparse.FieldInfo, naming shape.Naming, pkgPath string) (shape.FieldSpec, bool, error) {
	if !token.IsExported(f.Name) {
		return shape.FieldSpec{}, false, nil
	}
	name, skip := shape.ProjectionName(f.Name, f.Tag.Get("json"), naming)
	if skip {
		return shape.FieldSpec{}, false, nil
	}
	return shape.ParseTag(name, f.Name, typeRefOf(f, pkgPath), f.Tag.Get(shape.TagName))
}

// typeRefOf 拆开最多一层 []T、[N]T、*T 或 Option[T]，内层必须是具名类型
// 具名类型以 <导入路径>.<类型名> 标识
func typeRefOf(f structparse.FieldInfo, pkgPath string) shape.TypeRef {
	ref := shape.TypeRef{Expr: f.TypeText}

	expr := f.Type
	switch t := expr.(type) {
	case *ast.StarExpr:
		ref.Wrapper, expr = shape.WrapOptional, t.X
	case *ast.ArrayType:
		ref.Wrapper, expr = shape.WrapCollection, t.Elt
	case *ast.IndexExpr:
		if isOptionType(t.X) {
			ref.Wrapper, expr = shape.WrapOptional, t.Index
		}
	}

	ref.Name = namedKey(expr, f, pkgPath)
	if ref.Name == "" {
		ref.Wrapper = shape.WrapNone
	}
	return ref
}

func isOptionType(expr ast.Expr) bool {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name == "Option"
	case *ast.SelectorExpr:
		return t.Sel.Name == "Option"
	}
	return false
}

func namedKey(expr ast.Expr, f structparse.FieldInfo, pkgPath string) string {
	switch t := expr.(type) {
	case *ast.Ident:
		if types.Universe.Lookup(t.Name) != nil {
			return ""
		}
		if f.PkgPath != "" {
			return f.PkgPath + "." + t.Name
		}
		return pkgPath + "." + t.Name
	case *ast.SelectorExpr:
		x, ok := t.X.(*ast.Ident)
		if !ok {
			return ""
		}
		imp, ok := f.Imports.Lookup(x.Name)
		if !ok {
			return ""
		}
		return imp.ImportPath + "." + t.Sel.Name
	}
	return ""
}

func (a *analyzer) analyzeQuery(at *plugin.AnnotatedTarget, project *Project) (*QueryDef, error) {
	ann := plugin.GetAnnotation(at.Annotations, annotationQuery)
	var params QueryParams
	if err := plugin.ParseAnnotationParams(ann, &params, plugin.ParseParamsFromStruct(QueryParams{})); err != nil {
		return nil, err
	}

	spec, ok := at.Target.Node.(*ast.ValueSpec)
	if !ok {
		return nil, errors.New("@ShapedQuery 只能用于 const 或 var")
	}
	idx := slices.IndexFunc(spec.Names, func(id *ast.Ident) bool { return id.Name == at.Target.Name })
	if idx < 0 || idx >= len(spec.Values) {
		return nil, errors.New("@ShapedQuery 的模板必须用字符串字面量初始化")
	}
	template, err := evalString(spec.Values[idx], at.Target.File)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(at.Target.FilePath)
	pkgConfig := a.opts.packageConfig(dir)

	namespace := params.Namespace
	if namespace == "" {
		namespace = a.opts.option(dir, "namespace")
	}
	expander, err := shape.NewExpander(project, namespace)
	if err != nil {
		return nil, err
	}
	expanded, err := expander.Expand(template)
	if err != nil {
		return nil, err
	}

	varName := params.Name
	if varName == "" {
		varName = defaultQueryName(at.Target.Name)
	}
	if !token.IsIdentifier(varName) {
		return nil, fmt.Errorf("变量名 %q 不是合法的标识符", varName)
	}
	if varName == at.Target.Name {
		return nil, fmt.Errorf("生成的变量名 %s 与模板同名", varName)
	}

	var cmdOutput string
	if a.opts != nil {
		cmdOutput = a.opts.DefaultOutput
	}
	return &QueryDef{
		VarName:   varName,
		Source:    at.Target.Name,
		Template:  template,
		Namespace: expander.Namespace(),
		Expanded:  expanded,
		PkgName:   at.Target.PackageName,
		FilePath:  at.Target.FilePath,
		Output:    plugin.GetOutputPath(at.Target, ann, DefaultOutput, pkgConfig, generatorName, cmdOutput),
		Position:  at.Target.Position,
	}, nil
}

// defaultQueryName userTemplate -> user，其它名字追加 Query
func defaultQueryName(name string) string {
	if trimmed, ok := strings.CutSuffix(name, "Template"); ok && trimmed != "" {
		return trimmed
	}
	return name + "Query"
}
