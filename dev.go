package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/donutnomad/shapegen/internal/utils"
	"github.com/donutnomad/shapegen/plugin"
	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newDevCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev [路径...]",
		Short: "开发模式，监听文件变动自动生成",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDev(cmd.Context(), args)
		},
	}
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "防抖动时间")
	return cmd
}

// devRunner 处理文件变动
type devRunner struct {
	run      func(ctx context.Context, dir string) (*plugin.RunStats, error)
	debounce time.Duration
	scanner  *plugin.Scanner
	log      *zap.SugaredLogger
	ctx      context.Context

	mu          sync.Mutex
	pendingDirs map[string]*time.Timer // key: 包目录
}

func (a *app) runDev(ctx context.Context, patterns []string) error {
	registry := plugin.Global()
	if len(registry.Generators()) == 0 {
		return fmt.Errorf("没有已注册的生成器")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监听器失败: %w", err)
	}
	defer watcher.Close()

	dirs, err := collectWatchDirs(defaultPatterns(patterns))
	if err != nil {
		return fmt.Errorf("收集监听目录失败: %w", err)
	}
	if len(dirs) == 0 {
		return fmt.Errorf("没有找到需要监听的目录")
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("添加监听目录失败 %s: %w", dir, err)
		}
		a.log.Debugw("监听目录", "dir", dir)
	}

	r := &devRunner{
		run: func(ctx context.Context, dir string) (*plugin.RunStats, error) {
			opts := a.runOptions([]string{dir}) // 只生成变动的包
			return plugin.RunWithOptions(ctx, opts)
		},
		debounce:    a.cfg.Debounce,
		scanner:     plugin.NewScanner(plugin.WithAnnotationFilter(registry.Annotations()...)),
		log:         a.log,
		ctx:         ctx,
		pendingDirs: make(map[string]*time.Timer),
	}
	defer r.stop()

	fmt.Printf("开发模式已启动，监听 %d 个目录\n", len(dirs))
	fmt.Println("按 Ctrl+C 退出")
	fmt.Println()

	return r.watchLoop(watcher)
}

func (r *devRunner) watchLoop(watcher *fsnotify.Watcher) error {
	for {
		select {
		case <-r.ctx.Done():
			fmt.Println("\n正在退出...")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			r.handleEvent(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.log.Warnw("监听错误", "error", err)
		}
	}
}

// handleEvent 只处理包含注解且语法正确的源文件
func (r *devRunner) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	filePath := event.Name
	if !strings.HasSuffix(filePath, ".go") || isGeneratedFile(filePath) {
		return
	}
	r.log.Debugw("检测到文件变化", "file", filePath)

	matched, err := r.scanner.QuickMatchFile(filePath)
	if err != nil {
		r.log.Debugw("检查注解失败", "file", filePath, "error", err)
		return
	}
	if !matched {
		r.log.Debugw("跳过文件（无注解）", "file", filePath)
		return
	}

	if err := utils.CheckSyntax(filePath); err != nil {
		color.Yellow("语法错误 %s: %v", filePath, err)
		return
	}

	r.schedule(filepath.Dir(filePath))
}

// schedule 同一目录在 debounce 时间内的多次变动只触发一次生成
func (r *devRunner) schedule(pkgDir string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, ok := r.pendingDirs[pkgDir]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(r.debounce, func() {
		r.mu.Lock()
		if r.pendingDirs[pkgDir] != timer {
			// 已被新的变动取代
			r.mu.Unlock()
			return
		}
		delete(r.pendingDirs, pkgDir)
		r.mu.Unlock()

		if r.ctx.Err() != nil {
			return
		}
		r.generate(pkgDir)
	})
	r.pendingDirs[pkgDir] = timer
}

func (r *devRunner) generate(pkgDir string) {
	stats, err := r.run(r.ctx, pkgDir)
	if err != nil {
		printError(os.Stdout, err)
		return
	}
	if stats.FileCount() > 0 {
		color.Green("生成完成: %s, %d 个文件, 写入 %d 个 (耗时: %v)",
			pkgDir, stats.FileCount(), len(stats.Written), stats.TotalDuration)
	}
}

// stop 退出时停止所有待处理的定时器
func (r *devRunner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for dir, timer := range r.pendingDirs {
		timer.Stop()
		delete(r.pendingDirs, dir)
	}
}

// collectWatchDirs 收集需要监听的目录，跳过隐藏目录、vendor 和 testdata
func collectWatchDirs(patterns []string) ([]string, error) {
	var dirs []string
	seen := make(map[string]bool)
	add := func(dir string) {
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, pattern := range patterns {
		recursive := strings.HasSuffix(pattern, "/...")
		absDir, err := filepath.Abs(strings.TrimSuffix(pattern, "/..."))
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(absDir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			continue
		}
		if !recursive {
			add(absDir)
			continue
		}

		err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			name := d.Name()
			if path != absDir && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") ||
				name == "vendor" || name == "testdata") {
				return filepath.SkipDir
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return dirs, nil
}

// isGeneratedFile 测试文件和带生成头的文件不触发生成
// 输出文件名可配置，所以按文件头判断
func isGeneratedFile(filePath string) bool {
	if strings.HasSuffix(filePath, "_test.go") {
		return true
	}
	f, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < 5 && scanner.Scan(); i++ {
		if strings.Contains(scanner.Text(), plugin.GeneratedHeader) {
			return true
		}
	}
	return false
}
