package pkgresolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/mod/modfile"
	"golang.org/x/mod/module"
)

// ErrStdLib 标准库包不参与结构体解析
var ErrStdLib = errors.New("标准库包不支持解析")

// Package 导入路径解析结果
type Package struct {
	ImportPath string // 完整导入路径
	Dir        string // 磁盘目录
	Name       string // package 声明中的真实包名
}

// Resolver 将导入路径解析为磁盘目录和真实包名
// 项目内的包按 go.mod 的 module 路径定位，第三方包在 GOMODCACHE 中查找
type Resolver struct {
	projectRoot string
	modulePath  string

	cache sync.Map // importPath -> *Package
}

// NewResolver 创建解析器，projectRoot 为包含 go.mod 的目录
func NewResolver(projectRoot string) (*Resolver, error) {
	projectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, err
	}
	modulePath, err := ReadModulePath(projectRoot)
	if err != nil {
		return nil, err
	}
	return &Resolver{projectRoot: projectRoot, modulePath: modulePath}, nil
}

// NewResolverFromDir 从任意目录向上查找 go.mod 后创建解析器
func NewResolverFromDir(dir string) (*Resolver, error) {
	root, err := FindProjectRoot(dir)
	if err != nil {
		return nil, err
	}
	return NewResolver(root)
}

// ProjectRoot 项目根目录
func (r *Resolver) ProjectRoot() string {
	return r.projectRoot
}

// ModulePath 当前模块路径
func (r *Resolver) ModulePath() string {
	return r.modulePath
}

// ImportPathOf 返回项目内目录对应的导入路径
func (r *Resolver) ImportPathOf(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(r.projectRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("目录 %s 不在项目 %s 内", dir, r.projectRoot)
	}
	if rel == "." {
		return r.modulePath, nil
	}
	return r.modulePath + "/" + filepath.ToSlash(rel), nil
}

// Resolve 解析导入路径
func (r *Resolver) Resolve(importPath string) (*Package, error) {
	if importPath == "" {
		return nil, errors.New("导入路径为空")
	}
	if cached, ok := r.cache.Load(importPath); ok {
		return cached.(*Package), nil
	}

	dir, err := r.resolveDir(importPath)
	if err != nil {
		return nil, err
	}
	name, err := ReadPackageName(dir)
	if err != nil {
		return nil, err
	}

	pkg := &Package{ImportPath: importPath, Dir: dir, Name: name}
	actual, _ := r.cache.LoadOrStore(importPath, pkg)
	return actual.(*Package), nil
}

func (r *Resolver) resolveDir(importPath string) (string, error) {
	if importPath == r.modulePath || strings.HasPrefix(importPath, r.modulePath+"/") {
		rel := strings.TrimPrefix(strings.TrimPrefix(importPath, r.modulePath), "/")
		dir := filepath.Join(r.projectRoot, filepath.FromSlash(rel))
		if _, err := os.Stat(dir); err != nil {
			return "", fmt.Errorf("项目内包 %s 不存在: %w", importPath, err)
		}
		return dir, nil
	}

	// 标准库的第一段不含域名
	first, _, _ := strings.Cut(importPath, "/")
	if !strings.Contains(first, ".") {
		return "", fmt.Errorf("%s: %w", importPath, ErrStdLib)
	}

	return FindThirdPartyPackage(importPath)
}

// FindProjectRoot 从 startDir 向上查找包含 go.mod 的目录
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("未找到项目根目录（go.mod文件）从 %s 开始", startDir)
		}
		dir = parent
	}
}

// ReadModulePath 读取 go.mod 中的 module 路径
func ReadModulePath(projectRoot string) (string, error) {
	content, err := os.ReadFile(filepath.Join(projectRoot, "go.mod"))
	if err != nil {
		return "", err
	}
	modulePath := modfile.ModulePath(content)
	if modulePath == "" {
		return "", fmt.Errorf("未在 %s/go.mod 中找到模块名称", projectRoot)
	}
	return modulePath, nil
}

// FindThirdPartyPackage 在模块缓存中查找第三方包
// 对于 github.com/user/repo/pkg/sub 依次尝试 repo/pkg/sub@*、repo/pkg@*、repo@*
func FindThirdPartyPackage(importPath string) (string, error) {
	modCache := modCacheDir()
	parts := strings.Split(importPath, "/")

	for i := len(parts); i >= 1; i-- {
		modulePath := strings.Join(parts[:i], "/")
		escaped, err := module.EscapePath(modulePath)
		if err != nil {
			continue
		}
		matches, err := filepath.Glob(filepath.Join(modCache, filepath.FromSlash(escaped)+"@*"))
		if err != nil || len(matches) == 0 {
			continue
		}

		// 字典序最后一个通常是最新版本
		dir := matches[len(matches)-1]
		if i < len(parts) {
			dir = filepath.Join(dir, filepath.FromSlash(strings.Join(parts[i:], "/")))
		}
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
	}

	return "", fmt.Errorf("未找到第三方包 %s，请先执行 go mod download", importPath)
}

func modCacheDir() string {
	if dir := os.Getenv("GOMODCACHE"); dir != "" {
		return dir
	}
	goPath := os.Getenv("GOPATH")
	if goPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		goPath = filepath.Join(home, "go")
	}
	// GOPATH 可能包含多个目录，模块缓存在第一个下面
	goPath = filepath.SplitList(goPath)[0]
	return filepath.Join(goPath, "pkg", "mod")
}
