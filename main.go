package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/donutnomad/shapegen/plugin"
	"github.com/donutnomad/shapegen/shapegen"
	"github.com/fatih/color"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	// 集中注册所有生成器
	plugin.MustRegister(shapegen.NewShapeGenerator())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		printError(root.ErrOrStderr(), err)
		os.Exit(1)
	}
}

// app 命令之间共享的配置和日志
type app struct {
	configPath string
	cfg        *Config
	log        *zap.SugaredLogger
}

func newRootCommand() *cobra.Command {
	a := &app{log: zap.NewNop().Sugar()}

	root := &cobra.Command{
		Use:   "shapegen [路径...]",
		Short: "EdgeQL 投影 shape 代码生成工具",
		Long: `shapegen - EdgeQL 投影 shape 代码生成工具

为 @Shape 结构体生成 Shape() 方法和注册代码，
为 @ShapedQuery 模板生成展开一次、之后直接复用的查询变量。

路径:
  支持 Go 包路径模式，如:
    ./...          递归扫描当前目录及子目录（默认）
    ./pkg/...      递归扫描指定目录
    ./models       只扫描 models 目录

模板变量:
  $FILE     - 源文件名（不含 .go 后缀）
  $PACKAGE  - 包名`,
		Example: `  shapegen                          扫描当前目录（默认 ./...）
  shapegen -v ./models/...          详细模式扫描 models 目录
  shapegen --output '$FILE_shape'   指定输出文件名
  shapegen dev ./...                开发模式，监听文件变动
  shapegen verify ./...             检查生成文件是否最新`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGen(cmd.Context(), args)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "配置文件路径（默认查找当前目录的 shapegen.yaml）")
	flags.BoolP("verbose", "v", false, "详细输出")
	flags.String("output", "", "默认输出路径（支持模板变量 $FILE, $PACKAGE）")
	flags.String("naming", "", "默认字段命名策略: snake 或 none")
	flags.String("namespace", "", "默认占位符命名空间")
	flags.Bool("async", true, "并行执行生成器")

	root.AddCommand(
		&cobra.Command{
			Use:   "gen [路径...]",
			Short: "执行代码生成（默认命令）",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runGen(cmd.Context(), args)
			},
		},
		newDevCommand(a),
		newVerifyCommand(a),
		newInspectCommand(a),
		&cobra.Command{
			Use:   "help-annotations",
			Short: "显示支持的注解及参数",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprint(cmd.OutOrStdout(), plugin.FormatHelpText(plugin.Global()))
			},
		},
	)
	return root
}

// setup 加载配置并初始化日志
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := LoadConfig(a.configPath, cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg

	if cfg.Verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("初始化日志失败: %w", err)
		}
		a.log = logger.Sugar()
		a.log.Debugf("配置: %s", spew.Sdump(cfg))
	}
	return nil
}

func (a *app) runOptions(patterns []string) *plugin.RunOptions {
	return &plugin.RunOptions{
		Registry: plugin.Global(),
		Patterns: defaultPatterns(patterns),
		Output:   a.cfg.Output,
		Async:    a.cfg.Async,
		Logger:   a.log,
		Options:  a.cfg.Options(),
	}
}

func (a *app) runGen(ctx context.Context, patterns []string) error {
	registry := plugin.Global()
	if len(registry.Generators()) == 0 {
		return errors.New("没有已注册的生成器")
	}

	if a.cfg.Verbose {
		fmt.Printf("已注册 %d 个生成器:\n", len(registry.Generators()))
		for _, gen := range registry.Generators() {
			anns := lo.Map(gen.Annotations(), func(item string, _ int) string { return "@" + item })
			fmt.Printf("  - %s (%s)\n", gen.Name(), strings.Join(anns, ","))
		}
		fmt.Println()
	}

	stats, err := plugin.RunWithOptions(ctx, a.runOptions(patterns))
	if stats != nil && (stats.FileCount() > 0 || a.cfg.Verbose) {
		fmt.Printf("统计: 扫描 %d 个目标, 生成 %d 个文件, 写入 %d 个文件\n",
			stats.TargetCount, stats.FileCount(), len(stats.Written))
		fmt.Printf("耗时: 扫描 %v, 生成 %v, 总计 %v\n", stats.ScanDuration, stats.GenerateDuration, stats.TotalDuration)
	}
	return err
}

func defaultPatterns(patterns []string) []string {
	if len(patterns) == 0 {
		return []string{"./..."}
	}
	return patterns
}

// printError 多个错误逐行输出
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		red.Fprintf(w, "错误: %v\n", err)
		return
	}
	red.Fprintf(w, "%d 个错误:\n", len(merr.Errors))
	for _, e := range merr.Errors {
		fmt.Fprintf(w, "  %s %v\n", color.RedString("✗"), e)
	}
}
