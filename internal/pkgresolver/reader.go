package pkgresolver

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
)

// ReadPackageName 读取目录中第一个非测试 Go 文件的 package 声明
// 包名可能与目录名不同，生成代码时必须使用真实包名
func ReadPackageName(pkgDir string) (string, error) {
	files, err := GoFiles(pkgDir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("目录 %s 中没有找到 Go 源文件", pkgDir)
	}

	f, err := parser.ParseFile(token.NewFileSet(), files[0], nil, parser.PackageClauseOnly)
	if err != nil {
		return "", fmt.Errorf("解析文件 %s 失败: %w", files[0], err)
	}
	return f.Name.Name, nil
}

// GoFiles 返回目录下（不递归）的非测试 Go 文件
func GoFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败 %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}
