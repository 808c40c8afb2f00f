package structparse

import (
	"errors"
	"fmt"
	"go/ast"
	"os"
	"path/filepath"
	"reflect"
	"regexp"

	"github.com/donutnomad/shapegen/internal/pkgresolver"
)

// errNotStruct 嵌入的类型不是可展开的结构体，按普通字段处理
var errNotStruct = errors.New("不是结构体")

// Option ParseContext 选项
type Option func(*ParseContext)

// WithKeepTag 嵌入字段带有该 tag 时不展开，作为普通字段返回
func WithKeepTag(key string) Option {
	return func(c *ParseContext) {
		c.keepTag = key
	}
}

func (c *ParseContext) shouldExpand(tag reflect.StructTag) bool {
	if c.keepTag == "" {
		return true
	}
	_, ok := tag.Lookup(c.keepTag)
	return !ok
}

// expandEmbedded 展开嵌入结构体的字段
// stack 记录正在解析的结构体，用于检测循环嵌入
func (c *ParseContext) expandEmbedded(expr ast.Expr, filename, pkgPath string, imports Imports, stack map[string]bool) ([]FieldInfo, error) {
	if star, ok := expr.(*ast.StarExpr); ok {
		expr = star.X
	}

	var (
		dir        string
		typeName   string
		declPkg    string
		sourceType string
	)
	switch t := expr.(type) {
	case *ast.Ident:
		dir, typeName, declPkg, sourceType = filepath.Dir(filename), t.Name, pkgPath, t.Name
	case *ast.SelectorExpr:
		x, ok := t.X.(*ast.Ident)
		if !ok {
			return nil, errNotStruct
		}
		info, ok := imports.Lookup(x.Name)
		if !ok {
			return nil, fmt.Errorf("未找到包 %s 的导入信息", x.Name)
		}
		if c.resolver == nil {
			return nil, fmt.Errorf("未找到 go.mod，无法解析包 %s", info.ImportPath)
		}
		pkg, err := c.resolver.Resolve(info.ImportPath)
		if errors.Is(err, pkgresolver.ErrStdLib) {
			return nil, errNotStruct
		}
		if err != nil {
			return nil, err
		}
		dir, typeName, declPkg, sourceType = pkg.Dir, t.Sel.Name, info.ImportPath, x.Name+"."+t.Sel.Name
	default:
		return nil, errNotStruct
	}

	key := stackKey(dir, typeName)
	if stack[key] {
		return nil, fmt.Errorf("嵌入结构体 %s 循环引用", sourceType)
	}
	if len(stack) >= maxEmbeddingDepth {
		return nil, fmt.Errorf("嵌入字段深度超过限制 %d: %s", maxEmbeddingDepth, sourceType)
	}

	target, err := c.findStructFile(dir, typeName)
	if err != nil {
		return nil, err
	}

	stack[key] = true
	defer delete(stack, key)

	info, err := c.parseStruct(target, typeName, declPkg, stack)
	if err != nil {
		return nil, err
	}

	fields := make([]FieldInfo, len(info.Fields))
	for i, field := range info.Fields {
		fields[i] = field
		if field.SourceType == "" {
			fields[i].SourceType = sourceType
		}
	}
	return fields, nil
}

// findStructFile 在包目录中查找声明了结构体的文件
func (c *ParseContext) findStructFile(dir, name string) (string, error) {
	files, err := pkgresolver.GoFiles(dir)
	if err != nil {
		return "", err
	}
	for _, file := range files {
		if !containsStruct(file, name) {
			continue
		}
		f, err := c.ParseFile(file)
		if err != nil {
			return "", err
		}
		if spec, _ := findStructSpec(f, name); spec != nil {
			return file, nil
		}
	}
	return "", errNotStruct
}

// containsStruct 文本预检查，避免解析无关文件
func containsStruct(filename, name string) bool {
	content, err := os.ReadFile(filename)
	if err != nil {
		return false
	}
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s+struct\b`)
	return re.Match(content)
}

func stackKey(dir, name string) string {
	return dir + "#" + name
}
