package structparse

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"sync"

	"github.com/donutnomad/shapegen/internal/pkgresolver"
)

// ParseContext 解析上下文
// 缓存已解析的文件，同一次生成中多个结构体共享
type ParseContext struct {
	resolver *pkgresolver.Resolver // 为空时只能展开同包的嵌入结构体
	fset     *token.FileSet
	keepTag  string

	mu    sync.Mutex
	files map[string]*ast.File
}

// NewParseContext 创建解析上下文
func NewParseContext(resolver *pkgresolver.Resolver, opts ...Option) *ParseContext {
	c := &ParseContext{
		resolver: resolver,
		fset:     token.NewFileSet(),
		files:    make(map[string]*ast.File),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewParseContextFromDir 从目录向上查找 go.mod 创建解析上下文
// 找不到 go.mod 时退化为只支持同包解析
func NewParseContextFromDir(dir string, opts ...Option) *ParseContext {
	resolver, err := pkgresolver.NewResolverFromDir(dir)
	if err != nil {
		return NewParseContext(nil, opts...)
	}
	return NewParseContext(resolver, opts...)
}

// Resolver 包解析器，可能为 nil
func (c *ParseContext) Resolver() *pkgresolver.Resolver {
	return c.resolver
}

// ParseFile 解析并缓存文件
func (c *ParseContext) ParseFile(filename string) (*ast.File, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.files[abs]; ok {
		return f, nil
	}
	f, err := parser.ParseFile(c.fset, abs, nil, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("解析文件 %s 失败: %w", filename, err)
	}
	c.files[abs] = f
	return f, nil
}
