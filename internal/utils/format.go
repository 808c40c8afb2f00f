package utils

import (
	"fmt"
	"os"

	"golang.org/x/tools/imports"
)

// Format 格式化生成的代码并整理 import
// 格式化失败时返回的错误附带原始内容的行号，方便定位生成器问题
func Format(path string, src []byte) ([]byte, error) {
	out, err := imports.Process(path, src, &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, fmt.Errorf("%w\n%s", err, numberLines(src))
	}
	return out, nil
}

// CheckSyntax 只检查文件语法，不修改 import
func CheckSyntax(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = imports.Process(path, content, &imports.Options{
		Fragment:   true,
		AllErrors:  true,
		Comments:   true,
		FormatOnly: true,
	})
	return err
}

func numberLines(src []byte) string {
	var out []byte
	line := 1
	out = fmt.Appendf(out, "%4d  ", line)
	for i, b := range src {
		out = append(out, b)
		if b == '\n' && i < len(src)-1 {
			line++
			out = fmt.Appendf(out, "%4d  ", line)
		}
	}
	return string(out)
}
