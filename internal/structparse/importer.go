package structparse

import (
	"go/ast"
	"path"
	"strconv"
)

// Lookup 按源码中使用的包名查找导入
func (im Imports) Lookup(name string) (*ImportInfo, bool) {
	info, ok := im[name]
	return info, ok
}

// extractImports 提取文件的导入信息
// 没有显式别名时以真实包名为 key，包名可能与目录名不同；无法解析时退化为路径最后一段
func (c *ParseContext) extractImports(file *ast.File) Imports {
	imports := make(Imports, len(file.Imports))

	for _, imp := range file.Imports {
		importPath, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}

		packageName := path.Base(importPath)
		if c.resolver != nil {
			if pkg, err := c.resolver.Resolve(importPath); err == nil {
				packageName = pkg.Name
			}
		}

		info := &ImportInfo{PackageName: packageName, ImportPath: importPath}
		if imp.Name != nil {
			switch imp.Name.Name {
			case "_", ".":
				continue
			}
			info.Alias = imp.Name.Name
			imports[info.Alias] = info
			continue
		}

		imports[packageName] = info
	}

	return imports
}
