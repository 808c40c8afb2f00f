package plugin

import (
	"fmt"
	"go/ast"
	"path/filepath"
	"strings"
)

// directivePrefix 包级配置指令，支持 //go:shapegen: 和 // go:shapegen:
const directivePrefix = "go:shapegen:"

// parseDirectives 收集文件中所有 go:shapegen: 指令并合并为包级配置
// 没有指令时返回 nil
//
//	// go:shapegen: -output `$FILE_shape`
//	// go:shapegen: -naming none plugin:query -output `queries_gen`
func parseDirectives(file *ast.File, filePath string) (*PackageConfig, error) {
	var cfg *PackageConfig

	for _, cg := range file.Comments {
		for _, c := range cg.List {
			text := strings.TrimPrefix(c.Text, "//")
			text = strings.TrimPrefix(text, "/*")
			text = strings.TrimSuffix(text, "*/")
			text = strings.TrimSpace(text)

			line, found := strings.CutPrefix(text, directivePrefix)
			if !found {
				continue
			}
			if cfg == nil {
				cfg = &PackageConfig{
					PackageDir:    filepath.Dir(filePath),
					PluginOutputs: make(map[string]string),
					Options:       make(map[string]string),
				}
			}
			if err := cfg.parseLine(line); err != nil {
				return nil, fmt.Errorf("%s: %w", filePath, err)
			}
		}
	}

	return cfg, nil
}

// parseLine 解析单行指令
// plugin:<name> 之后的 -output 只对该插件生效，其余 -key value 为包级选项
func (c *PackageConfig) parseLine(line string) error {
	parts := splitDirectiveArgs(strings.TrimSpace(line))

	var currentPlugin string
	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if name, ok := strings.CutPrefix(part, "plugin:"); ok {
			currentPlugin = strings.ToLower(name)
			continue
		}

		key, ok := strings.CutPrefix(part, "-")
		if !ok || key == "" {
			return fmt.Errorf("无法识别的指令参数 %q", part)
		}
		if i+1 >= len(parts) {
			return fmt.Errorf("指令参数 -%s 缺少值", key)
		}
		i++
		value := trimQuotes(parts[i])

		switch {
		case key == "output" && currentPlugin != "":
			c.PluginOutputs[currentPlugin] = value
		case key == "output":
			c.DefaultOutput = value
		default:
			c.Options[strings.ToLower(key)] = value
		}
	}
	return nil
}

// splitDirectiveArgs 按空白分割参数，引号内的空白保留
func splitDirectiveArgs(line string) []string {
	var parts []string
	var current strings.Builder
	var quote byte

	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote == 0 && (c == '`' || c == '"' || c == '\''):
			quote = c
			current.WriteByte(c)
		case quote != 0 && c == quote:
			quote = 0
			current.WriteByte(c)
		case quote == 0 && (c == ' ' || c == '\t'):
			flush()
		default:
			current.WriteByte(c)
		}
	}
	flush()

	return parts
}

// trimQuotes 去除成对的引号
func trimQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '`' && s[len(s)-1] == '`') ||
			(s[0] == '"' && s[len(s)-1] == '"') ||
			(s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
