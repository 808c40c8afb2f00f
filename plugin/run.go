package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/donutnomad/gg"
	"github.com/donutnomad/shapegen/internal/utils"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GeneratedHeader 生成文件的头部注释
const GeneratedHeader = "Code generated by shapegen. DO NOT EDIT."

// RunOptions 运行选项
type RunOptions struct {
	Registry *Registry
	Patterns []string
	Output   string // 命令行指定的默认输出路径（最低优先级）
	Async    bool   // 并行执行生成器
	DryRun   bool   // 只生成内容，不写入文件
	Logger   *zap.SugaredLogger

	// Options 全局选项（如 naming、namespace），包级指令优先
	Options map[string]string
}

// RunStats 运行统计信息
type RunStats struct {
	ScanDuration     time.Duration
	GenerateDuration time.Duration
	TotalDuration    time.Duration
	TargetCount      int

	// Files 格式化后的生成内容，key: 输出文件路径
	Files map[string][]byte
	// Written 实际写入（内容有变化）的文件
	Written []string
}

// FileCount 生成的文件数量
func (s *RunStats) FileCount() int {
	if s == nil {
		return 0
	}
	return len(s.Files)
}

// Run 使用全局注册表运行代码生成
func Run(ctx context.Context, patterns ...string) error {
	_, err := RunWithOptions(ctx, &RunOptions{Patterns: patterns, Async: true})
	return err
}

// RunWithOptions 运行代码生成
//  1. 扫描注解
//  2. 将目标分发给生成器并解析注解参数
//  3. 执行生成器
//  4. 合并同一文件的 gg 定义，格式化后写入
//
// 返回的错误为 *multierror.Error，包含所有目标的错误
func RunWithOptions(ctx context.Context, opts *RunOptions) (*RunStats, error) {
	totalStart := time.Now()
	stats := &RunStats{Files: make(map[string][]byte)}

	registry := opts.Registry
	if registry == nil {
		registry = globalRegistry
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	annotations := registry.Annotations()
	if len(annotations) == 0 {
		return nil, errors.New("没有已注册的生成器")
	}

	scanStart := time.Now()
	scanner := NewScanner(WithAnnotationFilter(annotations...), WithScannerLogger(log))
	result, err := scanner.Scan(ctx, opts.Patterns...)
	if err != nil {
		return nil, fmt.Errorf("扫描失败: %w", err)
	}
	stats.ScanDuration = time.Since(scanStart)
	stats.TargetCount = len(result.All())

	if stats.TargetCount == 0 {
		log.Debug("没有找到任何带注解的目标")
		stats.TotalDuration = time.Since(totalStart)
		return stats, nil
	}
	log.Debugw("扫描完成", "targets", stats.TargetCount, "duration", stats.ScanDuration)

	generateStart := time.Now()
	dispatch := registry.DispatchTargets(result)

	var errs *multierror.Error

	// 按优先级排序
	genNames := lo.Keys(dispatch)
	slices.SortFunc(genNames, func(a, b string) int {
		genA, _ := registry.GetByName(a)
		genB, _ := registry.GetByName(b)
		if genA.Priority() != genB.Priority() {
			return genA.Priority() - genB.Priority()
		}
		return strings.Compare(a, b)
	})

	// 串行解析参数，生成器并行执行时只读；参数无效的目标不再分发
	// 同一目标可能分发给多个生成器，每个生成器拿到各自的副本
	for _, genName := range genNames {
		gen, _ := registry.GetByName(genName)
		dispatch[genName] = lo.FilterMap(dispatch[genName], func(target *AnnotatedTarget, _ int) (*AnnotatedTarget, bool) {
			bound := *target
			if err := bindParams(gen, &bound); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s: %s: %w", target.Target.Position, target.Target.Name, err))
				return nil, false
			}
			return &bound, true
		})
	}

	genResults := make(map[string]*GenerateResult, len(genNames))
	var mu sync.Mutex
	execute := func(genName string) error {
		gen, _ := registry.GetByName(genName)
		targets := dispatch[genName]
		start := time.Now()

		genResult, err := gen.Generate(&GenerateContext{
			Targets:        targets,
			PackageConfigs: result.PackageConfigs,
			DefaultOutput:  opts.Output,
			Options:        opts.Options,
			Logger:         log.With("generator", genName),
		})
		log.Debugw("生成器执行完成", "generator", genName, "targets", len(targets), "duration", time.Since(start))

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("生成器 %s 执行失败: %w", genName, err))
			return nil
		}
		if genResult != nil {
			genResults[genName] = genResult
		}
		return nil
	}

	if opts.Async {
		var g errgroup.Group
		for _, genName := range genNames {
			g.Go(func() error { return execute(genName) })
		}
		_ = g.Wait()
	} else {
		for _, genName := range genNames {
			_ = execute(genName)
		}
	}

	// 按优先级顺序收集定义
	fileDefinitions := make(map[string][]*gg.Generator)
	fileGenNames := make(map[string][]string)
	for _, genName := range genNames {
		genResult, ok := genResults[genName]
		if !ok {
			continue
		}
		for _, path := range lo.Keys(genResult.Definitions) {
			fileDefinitions[path] = append(fileDefinitions[path], genResult.Definitions[path])
			fileGenNames[path] = append(fileGenNames[path], genName)
		}
		if genResult.HasErrors() {
			errs = multierror.Append(errs, genResult.Errors.Errors...)
		}
	}

	paths := lo.Keys(fileDefinitions)
	slices.Sort(paths)
	for _, path := range paths {
		merged, err := mergeDefinitions(fileDefinitions[path], fileGenNames[path])
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("合并文件 %s 的定义失败: %w", path, err))
			continue
		}
		content, err := utils.Format(path, merged.Bytes())
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("格式化文件 %s 失败: %w", path, err))
			continue
		}
		stats.Files[path] = content

		if opts.DryRun {
			continue
		}
		written, err := writeIfChanged(path, content)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("写入文件 %s 失败: %w", path, err))
			continue
		}
		if written {
			stats.Written = append(stats.Written, path)
			log.Infow("生成文件", "path", path)
		}
	}

	stats.GenerateDuration = time.Since(generateStart)
	stats.TotalDuration = time.Since(totalStart)
	return stats, errs.ErrorOrNil()
}

// bindParams 将目标上属于该生成器的注解参数解析到参数结构体
func bindParams(gen Generator, target *AnnotatedTarget) error {
	proto := gen.NewParams()
	if proto == nil {
		return nil
	}
	val := reflect.ValueOf(proto)
	if val.Kind() != reflect.Ptr {
		return fmt.Errorf("NewParams() 必须返回指针类型, 得到: %T", proto)
	}

	var ann *Annotation
	for _, name := range gen.Annotations() {
		if ann = GetAnnotation(target.Annotations, name); ann != nil {
			break
		}
	}
	if ann == nil {
		return nil
	}

	if err := ParseAnnotationParams(ann, proto, gen.ParamDefs()); err != nil {
		return err
	}
	target.ParsedParams = val.Elem().Interface()
	return nil
}

// mergeDefinitions 合并同一文件的多个 gg 定义，每个生成器的内容前加分隔注释
func mergeDefinitions(definitions []*gg.Generator, genNames []string) (*gg.Generator, error) {
	if len(definitions) == 0 {
		return nil, errors.New("没有定义需要合并")
	}

	var pkgName string
	for _, def := range definitions {
		if def.PackageName() == "" {
			continue
		}
		if pkgName == "" {
			pkgName = def.PackageName()
		} else if pkgName != def.PackageName() {
			return nil, fmt.Errorf("包名不一致: %s vs %s", pkgName, def.PackageName())
		}
	}

	merged := gg.New()
	merged.SetHeader(GeneratedHeader)
	if pkgName != "" {
		merged.SetPackage(pkgName)
	}

	for i, def := range definitions {
		if len(definitions) > 1 {
			merged.Body().AddLine()
			merged.Body().AddString(fmt.Sprintf("// ================ %s ================", genNames[i]))
			merged.Body().AddLine()
		}
		merged.Merge(def)
	}

	return merged, nil
}

// writeIfChanged 内容与现有文件相同时不写入，返回是否写入
func writeIfChanged(path string, content []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// GetOutputPath 计算目标的输出路径
// 优先级：注解参数 output > 包级插件配置 > 包级默认配置 > 命令行参数 > defaultFileName
// 模板变量：$FILE 源文件名（不含 .go），$PACKAGE 包名
func GetOutputPath(target *Target, ann *Annotation, defaultFileName string, pkgConfig *PackageConfig, pluginName, cmdOutput string) string {
	var output string
	if ann != nil {
		output = ann.GetParam("output")
	}
	if output == "" {
		output = pkgConfig.GetPluginOutput(strings.ToLower(pluginName))
	}
	if output == "" {
		output = cmdOutput
	}
	if output == "" {
		output = defaultFileName
	}
	if output == "" {
		output = "shape_gen.go"
	}

	output = replaceTemplateVars(output, target)
	if !strings.HasSuffix(output, ".go") {
		output += ".go"
	}
	if filepath.IsAbs(output) {
		return output
	}
	return filepath.Join(filepath.Dir(target.FilePath), output)
}

func replaceTemplateVars(template string, target *Target) string {
	fileName := strings.TrimSuffix(filepath.Base(target.FilePath), ".go")
	template = strings.ReplaceAll(template, "$FILE", fileName)
	template = strings.ReplaceAll(template, "$PACKAGE", target.PackageName)
	return template
}
