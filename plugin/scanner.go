package plugin

import (
	"bufio"
	"context"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scanner 两阶段并行注解扫描器
// 第一阶段：逐行文本匹配，找出可能包含注解的文件
// 第二阶段：对匹配的文件进行 AST 解析
type Scanner struct {
	workers int
	logger  *zap.SugaredLogger

	annotationFilter []string
}

// ScannerOption 扫描器选项
type ScannerOption func(*Scanner)

func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithScannerLogger(logger *zap.SugaredLogger) ScannerOption {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAnnotationFilter(annotations ...string) ScannerOption {
	return func(s *Scanner) {
		s.annotationFilter = annotations
	}
}

func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		workers: runtime.NumCPU(),
		logger:  zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// quickMatchRegex 快速匹配 @Name
var quickMatchRegex = regexp.MustCompile(`@(\w+)`)

// Scan 扫描指定路径
// 支持: ./... ./pkg/... ./pkg /abs/path/... file.go
func (s *Scanner) Scan(ctx context.Context, patterns ...string) (*ScanResult, error) {
	allFiles, err := CollectFiles(patterns)
	if err != nil {
		return nil, err
	}

	matched, err := s.quickMatch(ctx, allFiles)
	if err != nil {
		return nil, err
	}
	s.logger.Debugw("快速匹配完成", "files", len(allFiles), "matched", len(matched))

	return s.parseFiles(ctx, matched)
}

// quickMatch 第一阶段：并行读取文件，检查是否包含注解或 go:shapegen: 指令
func (s *Scanner) quickMatch(ctx context.Context, files []string) ([]string, error) {
	flags := make([]bool, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			matched, err := s.QuickMatchFile(file)
			if err != nil {
				s.logger.Debugw("跳过无法读取的文件", "file", file, "error", err)
				return nil
			}
			flags[i] = matched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var matched []string
	for i, ok := range flags {
		if ok {
			matched = append(matched, files[i])
		}
	}
	return matched, nil
}

// QuickMatchFile 检查文件的注释行中是否包含注解或 go:shapegen: 指令
// dev 模式用它判断文件变动是否需要触发生成
func (s *Scanner) QuickMatchFile(filePath string) (bool, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(trimmed, "//") && !strings.HasPrefix(trimmed, "/*") {
			continue
		}
		if strings.Contains(trimmed, directivePrefix) {
			return true, nil
		}
		for _, match := range quickMatchRegex.FindAllStringSubmatch(trimmed, -1) {
			if len(s.annotationFilter) == 0 || slices.Contains(s.annotationFilter, match[1]) {
				return true, nil
			}
		}
	}
	return false, scanner.Err()
}

// fileResult 单个文件的解析结果
type fileResult struct {
	structs   []*AnnotatedTarget
	vars      []*AnnotatedTarget
	consts    []*AnnotatedTarget
	pkgConfig *PackageConfig
}

// parseFiles 第二阶段：并行 AST 解析，结果按文件顺序合并
func (s *Scanner) parseFiles(ctx context.Context, files []string) (*ScanResult, error) {
	results := make([]*fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := s.parseFile(file)
			if err != nil {
				s.logger.Warnw("解析文件失败", "file", file, "error", err)
				return nil
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &ScanResult{PackageConfigs: make(map[string]*PackageConfig)}
	for _, r := range results {
		if r == nil {
			continue
		}
		result.Structs = append(result.Structs, r.structs...)
		result.Vars = append(result.Vars, r.vars...)
		result.Consts = append(result.Consts, r.consts...)
		if r.pkgConfig != nil {
			s.mergePackageConfig(result.PackageConfigs, r.pkgConfig)
		}
	}
	return result, nil
}

// mergePackageConfig 同一包内多个文件的指令合并，后出现的覆盖先出现的
func (s *Scanner) mergePackageConfig(configs map[string]*PackageConfig, cfg *PackageConfig) {
	existing, ok := configs[cfg.PackageDir]
	if !ok {
		configs[cfg.PackageDir] = cfg
		return
	}
	if cfg.DefaultOutput != "" {
		if existing.DefaultOutput != "" && existing.DefaultOutput != cfg.DefaultOutput {
			s.logger.Warnw("包中存在多个不同的默认输出配置，使用后发现的配置", "dir", cfg.PackageDir)
		}
		existing.DefaultOutput = cfg.DefaultOutput
	}
	for k, v := range cfg.PluginOutputs {
		existing.PluginOutputs[k] = v
	}
	for k, v := range cfg.Options {
		existing.Options[k] = v
	}
}

// parseFile AST 解析单个文件，生成的文件直接跳过
func (s *Scanner) parseFile(filePath string) (*fileResult, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, nil, parser.ParseComments)
	if err != nil {
		return nil, err
	}
	if ast.IsGenerated(file) {
		return &fileResult{}, nil
	}

	result := &fileResult{}
	cfg, err := parseDirectives(file, filePath)
	if err != nil {
		return nil, err
	}
	result.pkgConfig = cfg

	for _, decl := range file.Decls {
		d, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		switch d.Tok {
		case token.TYPE:
			s.parseTypeDecl(fset, file, filePath, d, result)
		case token.VAR:
			s.parseValueDecl(fset, file, filePath, d, TargetVar, result)
		case token.CONST:
			s.parseValueDecl(fset, file, filePath, d, TargetConst, result)
		}
	}
	return result, nil
}

func (s *Scanner) annotationsOf(groups ...*ast.CommentGroup) []*Annotation {
	var annotations []*Annotation
	for _, g := range groups {
		if g == nil {
			continue
		}
		annotations = append(annotations, ParseAnnotations(g.Text())...)
	}
	if len(s.annotationFilter) > 0 {
		annotations = FilterByNames(annotations, s.annotationFilter...)
	}
	return annotations
}

// parseTypeDecl 解析结构体声明
// 注解可以写在 type 关键字上方，也可以写在分组声明中的类型上方
func (s *Scanner) parseTypeDecl(fset *token.FileSet, file *ast.File, filePath string, decl *ast.GenDecl, result *fileResult) {
	for _, spec := range decl.Specs {
		typeSpec, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}
		if _, isStruct := typeSpec.Type.(*ast.StructType); !isStruct {
			continue
		}

		groups := []*ast.CommentGroup{typeSpec.Doc}
		if len(decl.Specs) == 1 {
			groups = []*ast.CommentGroup{decl.Doc, typeSpec.Doc}
		}
		annotations := s.annotationsOf(groups...)
		if len(annotations) == 0 {
			continue
		}

		result.structs = append(result.structs, &AnnotatedTarget{
			Target: &Target{
				Kind:        TargetStruct,
				Name:        typeSpec.Name.Name,
				PackageName: file.Name.Name,
				FilePath:    filePath,
				Position:    fset.Position(typeSpec.Pos()),
				Node:        typeSpec,
				File:        file,
			},
			Annotations: annotations,
		})
	}
}

// parseValueDecl 解析 var/const 声明
func (s *Scanner) parseValueDecl(fset *token.FileSet, file *ast.File, filePath string, decl *ast.GenDecl, kind TargetKind, result *fileResult) {
	for _, spec := range decl.Specs {
		valueSpec, ok := spec.(*ast.ValueSpec)
		if !ok {
			continue
		}

		groups := []*ast.CommentGroup{valueSpec.Doc}
		if len(decl.Specs) == 1 {
			groups = []*ast.CommentGroup{decl.Doc, valueSpec.Doc}
		}
		annotations := s.annotationsOf(groups...)
		if len(annotations) == 0 {
			continue
		}

		for _, name := range valueSpec.Names {
			if name.Name == "_" {
				continue
			}
			target := &AnnotatedTarget{
				Target: &Target{
					Kind:        kind,
					Name:        name.Name,
					PackageName: file.Name.Name,
					FilePath:    filePath,
					Position:    fset.Position(name.Pos()),
					Node:        valueSpec,
					File:        file,
				},
				Annotations: annotations,
			}
			if kind == TargetVar {
				result.vars = append(result.vars, target)
			} else {
				result.consts = append(result.consts, target)
			}
		}
	}
}

// CollectFiles 收集需要扫描的 Go 文件，跳过测试文件、隐藏目录、vendor 和 testdata
func CollectFiles(patterns []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		recursive := strings.HasSuffix(pattern, "/...")
		pattern = strings.TrimSuffix(pattern, "/...")

		absPath, err := filepath.Abs(pattern)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			if strings.HasSuffix(absPath, ".go") {
				add(absPath)
			}
			continue
		}

		err = filepath.WalkDir(absPath, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path == absPath {
					return nil
				}
				name := d.Name()
				if !recursive || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
					name == "vendor" || name == "testdata" {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, ".go") && !strings.HasSuffix(path, "_test.go") {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return files, nil
}
