package plugin

import (
	"context"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/donutnomad/gg"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnnotations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "simple annotation", input: "// @Shape", expected: []string{"Shape"}},
		{name: "annotation with params", input: "// @Shape(name=`Account`, naming=none)", expected: []string{"Shape"}},
		{name: "multiple annotations", input: "// @Shape @Other", expected: []string{"Shape", "Other"}},
		{name: "multiline annotations", input: "// @Shape\n// @ShapedQuery(namespace=`project`)", expected: []string{"Shape", "ShapedQuery"}},
		{name: "block comment", input: "/* @Shape */", expected: []string{"Shape"}},
		{name: "no annotation", input: "// This is a comment", expected: nil},
		{name: "not at line start", input: "// contact admin@example.com", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names := lo.Map(ParseAnnotations(tt.input), func(a *Annotation, _ int) string { return a.Name })
			if len(tt.expected) == 0 {
				assert.Empty(t, names)
				return
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestAnnotationParams(t *testing.T) {
	annotations := ParseAnnotations("// @ShapedQuery(Name=`ListUsers`, namespace=\"project\", output=$FILE_q.go)")
	require.Len(t, annotations, 1)

	ann := annotations[0]
	assert.Equal(t, "ShapedQuery", ann.Name)
	assert.Equal(t, "ListUsers", ann.GetParam("name"))
	assert.Equal(t, "ListUsers", ann.GetParam("NAME"))
	assert.Equal(t, "project", ann.GetParam("namespace"))
	assert.Equal(t, "$FILE_q.go", ann.GetParam("output"))
	assert.True(t, ann.HasParam("output"))
	assert.False(t, ann.HasParam("naming"))
	assert.Equal(t, "snake", ann.GetParamOr("naming", "snake"))
}

func TestAnnotationParamsWithoutQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected map[string]string
	}{
		{
			name:     "普通格式多参数（逗号分隔）",
			input:    "// @Shape(name=User, naming=none)",
			expected: map[string]string{"name": "User", "naming": "none"},
		},
		{
			name:     "普通格式无空格",
			input:    "// @Shape(name=User,naming=none)",
			expected: map[string]string{"name": "User", "naming": "none"},
		},
		{
			name:     "混合格式（反引号和普通）",
			input:    "// @Shape(name=`User`, naming=none)",
			expected: map[string]string{"name": "User", "naming": "none"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			annotations := ParseAnnotations(tt.input)
			require.Len(t, annotations, 1)
			assert.Equal(t, tt.expected, annotations[0].Params)
		})
	}
}

func TestFilterByNames(t *testing.T) {
	annotations := ParseAnnotations("// @Shape @Other @ShapedQuery")

	filtered := FilterByNames(annotations, "Shape", "ShapedQuery")
	assert.Len(t, filtered, 2)
	assert.True(t, HasAnnotation(filtered, "ShapedQuery"))
	assert.Nil(t, GetAnnotation(filtered, "Other"))
	assert.Len(t, FilterByNames(annotations), 3)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	shapeGen := newMockGenerator("shapegen", []string{"Shape", "ShapedQuery"}, []TargetKind{TargetStruct, TargetVar}, nil)
	require.NoError(t, registry.Register(shapeGen))

	gen, ok := registry.GetByAnnotation("ShapedQuery")
	require.True(t, ok)
	assert.Equal(t, "shapegen", gen.Name())

	_, ok = registry.GetByName("missing")
	assert.False(t, ok)

	// 同名生成器
	assert.ErrorContains(t, registry.Register(newMockGenerator("shapegen", []string{"X"}, nil, nil)), "已注册")
	// 注解已被绑定
	err := registry.Register(newMockGenerator("other", []string{"Y", "Shape"}, nil, nil))
	assert.ErrorContains(t, err, "@Shape")
	_, ok = registry.GetByAnnotation("Y")
	assert.False(t, ok, "注册失败时不应留下部分绑定")

	low := newMockGenerator("early", []string{"Early"}, nil, nil)
	low.SetPriority(10)
	registry.MustRegister(low)

	names := lo.Map(registry.Generators(), func(g Generator, _ int) string { return g.Name() })
	assert.Equal(t, []string{"early", "shapegen"}, names)
	assert.Equal(t, []string{"Early", "Shape", "ShapedQuery"}, registry.Annotations())

	assert.Panics(t, func() { registry.MustRegister(low) })
}

func TestRegistry_DispatchTargets(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(newMockGenerator("shapegen", []string{"Shape", "ShapedQuery"}, []TargetKind{TargetStruct, TargetVar}, nil))

	both := &AnnotatedTarget{
		Target:      &Target{Kind: TargetStruct, Name: "User"},
		Annotations: ParseAnnotations("// @Shape @ShapedQuery"),
	}
	constant := &AnnotatedTarget{
		Target:      &Target{Kind: TargetConst, Name: "tpl"},
		Annotations: ParseAnnotations("// @ShapedQuery"),
	}
	unknown := &AnnotatedTarget{
		Target:      &Target{Kind: TargetVar, Name: "x"},
		Annotations: ParseAnnotations("// @Unknown"),
	}

	dispatch := registry.DispatchTargets(&ScanResult{Structs: []*AnnotatedTarget{both}, Vars: []*AnnotatedTarget{unknown}, Consts: []*AnnotatedTarget{constant}})
	require.Len(t, dispatch, 1)
	assert.Equal(t, []*AnnotatedTarget{both}, dispatch["shapegen"])
}

func parseDirectiveSource(t *testing.T, src string) (*PackageConfig, error) {
	t.Helper()
	file, err := parser.ParseFile(token.NewFileSet(), "/pkg/models/doc.go", src, parser.ParseComments)
	require.NoError(t, err)
	return parseDirectives(file, "/pkg/models/doc.go")
}

func TestParseDirectives(t *testing.T) {
	cfg, err := parseDirectiveSource(t, "// go:shapegen: -output `$FILE_shape` -naming none\n"+
		"//go:shapegen: plugin:ShapeGen -output \"queries gen\" -namespace project\n"+
		"package models\n")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "/pkg/models", cfg.PackageDir)
	assert.Equal(t, "$FILE_shape", cfg.DefaultOutput)
	assert.Equal(t, "queries gen", cfg.GetPluginOutput("shapegen"))
	assert.Equal(t, "$FILE_shape", cfg.GetPluginOutput("other"))
	assert.Equal(t, "none", cfg.GetOption("naming"))
	assert.Equal(t, "project", cfg.GetOption("namespace"))

	var nilCfg *PackageConfig
	assert.Empty(t, nilCfg.GetOption("naming"))
	assert.Empty(t, nilCfg.GetPluginOutput("shapegen"))
}

func TestParseDirectives_Errors(t *testing.T) {
	cfg, err := parseDirectiveSource(t, "// plain comment\npackage models\n")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = parseDirectiveSource(t, "// go:shapegen: -output\npackage models\n")
	assert.ErrorContains(t, err, "缺少值")

	_, err = parseDirectiveSource(t, "// go:shapegen: output x\npackage models\n")
	assert.ErrorContains(t, err, "无法识别")
}

func TestSplitDirectiveArgs(t *testing.T) {
	assert.Equal(t, []string{"-output", "`a b`", "plugin:x", "-k", `"v w"`},
		splitDirectiveArgs("-output `a b`  plugin:x\t-k \"v w\""))
	assert.Empty(t, splitDirectiveArgs("   "))
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

const scanModels = `package models

// go:shapegen: -naming none

// User 用户
// @Shape(name=Account)
type User struct {
	ID string
}

type (
	// @Shape
	Org struct{ ID string }

	// @Shape
	Alias = Org

	Plain struct{}
)

// @ShapedQuery
var userTemplate = "select User { shape::User }"

// @ShapedQuery(namespace=project)
const (
	orgTemplate = "select Org { project::Org }"
)

// 联系 admin@example.com
var ignored = 1
`

func TestScanner(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"models.go":            scanModels,
		"shape_gen.go":         "// Code generated by shapegen. DO NOT EDIT.\n\npackage models\n\n// @Shape\ntype Gen struct{}\n",
		"models_test.go":       "package models\n\n// @Shape\ntype InTest struct{}\n",
		"nested/nested.go":     "package nested\n\n// @Shape\ntype Deep struct{}\n",
		"testdata/fixture.go":  "package fixture\n\n// @Shape\ntype Fixture struct{}\n",
		".hidden/hidden.go":    "package hidden\n\n// @Shape\ntype Hidden struct{}\n",
		"nested/plain/none.go": "package plain\n\ntype None struct{}\n",
	})

	scanner := NewScanner(WithAnnotationFilter("Shape", "ShapedQuery"), WithWorkers(2))
	result, err := scanner.Scan(context.Background(), tmpDir)
	require.NoError(t, err)

	structs := lo.Map(result.Structs, func(a *AnnotatedTarget, _ int) string { return a.Target.Name })
	assert.Equal(t, []string{"User", "Org"}, structs)
	require.Len(t, result.Vars, 1)
	assert.Equal(t, "userTemplate", result.Vars[0].Target.Name)
	require.Len(t, result.Consts, 1)
	assert.Equal(t, "project", result.Consts[0].Annotations[0].GetParam("namespace"))

	user := result.Structs[0]
	assert.Equal(t, "models", user.Target.PackageName)
	assert.Equal(t, 7, user.Target.Position.Line)
	assert.NotNil(t, user.Target.File)
	assert.Equal(t, "Account", user.Annotations[0].GetParam("name"))

	cfg := result.PackageConfigs[tmpDir]
	require.NotNil(t, cfg)
	assert.Equal(t, "none", cfg.GetOption("naming"))

	assert.Len(t, result.ByAnnotation("ShapedQuery"), 2)
	assert.Len(t, result.All(), 4)
}

func TestScannerRecursive(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"a.go":                "package a\n\n// @Shape\ntype A struct{}\n",
		"sub/b.go":            "package b\n\n// @Shape\ntype B struct{}\n",
		"sub/vendor/v.go":     "package v\n\n// @Shape\ntype V struct{}\n",
		"sub/testdata/t.go":   "package t\n\n// @Shape\ntype T struct{}\n",
		"_ignored/ignored.go": "package ignored\n\n// @Shape\ntype I struct{}\n",
	})

	result, err := NewScanner().Scan(context.Background(), tmpDir+"/...")
	require.NoError(t, err)
	names := lo.Map(result.Structs, func(a *AnnotatedTarget, _ int) string { return a.Target.Name })
	assert.ElementsMatch(t, []string{"A", "B"}, names)

	_, err = NewScanner().Scan(context.Background(), filepath.Join(tmpDir, "missing"))
	assert.Error(t, err)
}

func TestScannerWithFilter(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"a.go": "package a\n\n// @Other\ntype A struct{}\n",
	})

	scanner := NewScanner(WithAnnotationFilter("Shape"))
	matched, err := scanner.QuickMatchFile(filepath.Join(tmpDir, "a.go"))
	require.NoError(t, err)
	assert.False(t, matched)

	result, err := scanner.Scan(context.Background(), tmpDir)
	require.NoError(t, err)
	assert.Empty(t, result.All())

	matched, err = NewScanner().QuickMatchFile(filepath.Join(tmpDir, "a.go"))
	require.NoError(t, err)
	assert.True(t, matched)
}

// ggTestGenerator 为每个目标生成一个函数，输出到 <name>_query.go
type ggTestGenerator struct {
	*BaseGenerator
}

type ggTestParams struct {
	Prefix string `param:"name=prefix,required=false,default=Query,description=函数名前缀"`
}

func (g *ggTestGenerator) Generate(ctx *GenerateContext) (*GenerateResult, error) {
	result := NewGenerateResult()
	for _, target := range ctx.Targets {
		params := target.ParsedParams.(ggTestParams)

		gen := gg.New()
		gen.SetPackage(target.Target.PackageName)
		gen.Body().NewFunction(params.Prefix+target.Target.Name).
			AddResult("", "string").
			AddBody(gg.Return(gg.Lit("querying " + target.Target.Name)))

		result.AddDefinition(GetOutputPath(target.Target, nil, strings.ToLower(target.Target.Name)+"_query.go",
			ctx.GetPackageConfig(filepath.Dir(target.Target.FilePath)), g.Name(), ctx.DefaultOutput), gen)
	}
	return result, nil
}

func newGGTestGenerator(name, annotation string) *ggTestGenerator {
	return &ggTestGenerator{BaseGenerator: NewBaseGenerator(name, []string{annotation}, []TargetKind{TargetStruct}, ggTestParams{})}
}

func TestRunWithOptions(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"model.go": `package test

// @TestGen
type User struct {
	ID uint
}

// @TestGen(prefix=Find)
type Order struct {
	ID uint
}

// @TestGen(prefix=1bad)
type Broken struct{}
`,
	})

	registry := NewRegistry()
	registry.MustRegister(newGGTestGenerator("testgen", "TestGen"))

	opts := &RunOptions{Registry: registry, Patterns: []string{tmpDir}, Async: true}
	stats, err := RunWithOptions(context.Background(), opts)

	// 只有 Broken 的生成结果无法通过格式化
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1)
	assert.Equal(t, 3, stats.TargetCount)
	assert.Equal(t, 2, stats.FileCount())
	assert.Len(t, stats.Written, 2)

	content, readErr := os.ReadFile(filepath.Join(tmpDir, "user_query.go"))
	require.NoError(t, readErr)
	assert.Contains(t, string(content), GeneratedHeader)
	assert.Contains(t, string(content), "func QueryUser() string")

	content, readErr = os.ReadFile(filepath.Join(tmpDir, "order_query.go"))
	require.NoError(t, readErr)
	assert.Contains(t, string(content), "func FindOrder() string")

	// 内容未变化时不重写
	stats, _ = RunWithOptions(context.Background(), opts)
	assert.Empty(t, stats.Written)
}

func TestRunWithOptions_MergeAndDryRun(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"model.go": `package test

// go:shapegen: -output combined

// @First
// @Second(prefix=Load)
type User struct{}
`,
	})

	registry := NewRegistry()
	registry.MustRegister(newGGTestGenerator("first", "First"))
	second := newGGTestGenerator("second", "Second")
	second.SetPriority(200)
	registry.MustRegister(second)

	stats, err := RunWithOptions(context.Background(), &RunOptions{Registry: registry, Patterns: []string{tmpDir}, DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 1, stats.FileCount())

	content := string(stats.Files[filepath.Join(tmpDir, "combined.go")])
	assert.Contains(t, content, "// ================ first ================")
	assert.Contains(t, content, "// ================ second ================")
	assert.Less(t, strings.Index(content, "func QueryUser"), strings.Index(content, "func LoadUser"))

	_, statErr := os.Stat(filepath.Join(tmpDir, "combined.go"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunWithOptions_NoGenerators(t *testing.T) {
	_, err := RunWithOptions(context.Background(), &RunOptions{Registry: NewRegistry(), Patterns: []string{"."}})
	assert.Error(t, err)
}

func TestGetOutputPath(t *testing.T) {
	target := &Target{FilePath: "/src/models/user.go", PackageName: "models"}
	ann := ParseAnnotations("// @Shape(output=$PACKAGE_shape)")[0]
	cfg := &PackageConfig{DefaultOutput: "pkg_default", PluginOutputs: map[string]string{"shapegen": "$FILE_plugin.go"}}

	assert.Equal(t, "/src/models/models_shape.go", GetOutputPath(target, ann, "default.go", cfg, "shapegen", "cmd.go"))
	assert.Equal(t, "/src/models/user_plugin.go", GetOutputPath(target, nil, "default.go", cfg, "ShapeGen", "cmd.go"))
	assert.Equal(t, "/src/models/pkg_default.go", GetOutputPath(target, nil, "default.go", cfg, "other", "cmd.go"))
	assert.Equal(t, "/src/models/cmd.go", GetOutputPath(target, nil, "default.go", nil, "other", "cmd.go"))
	assert.Equal(t, "/src/models/default.go", GetOutputPath(target, nil, "default.go", nil, "other", ""))
	assert.Equal(t, "/out/all.go", GetOutputPath(target, nil, "", nil, "other", "/out/all"))
}
