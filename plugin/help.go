package plugin

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
)

// FormatHelpText 为所有注册的生成器生成注解帮助
// 参数说明按显示宽度对齐，中文描述占两列
//
//	@Shape, @ShapedQuery - shapegen
//	  参数        必填  默认值  说明
//	  name        否            注册名，默认为结构体名
//	  output      否            输出文件路径（支持 $FILE、$PACKAGE）
func FormatHelpText(registry *Registry) string {
	generators := registry.Generators()
	if len(generators) == 0 {
		return "  (暂无已注册的生成器)\n"
	}

	var sb strings.Builder
	for _, gen := range generators {
		annotations := gen.Annotations()
		if len(annotations) == 0 {
			continue
		}

		names := make([]string, len(annotations))
		for i, ann := range annotations {
			names[i] = "@" + ann
		}
		fmt.Fprintf(&sb, "  %s - %s\n", strings.Join(names, ", "), gen.Name())

		rows := [][]string{{"参数", "必填", "默认值", "说明"}}
		hasOutput := false
		for _, p := range gen.ParamDefs() {
			hasOutput = hasOutput || p.Name == "output"
			rows = append(rows, []string{p.Name, yesNo(p.Required), p.Default, p.Description})
		}
		if !hasOutput {
			rows = append(rows, []string{"output", "否", "", "输出文件路径（支持 $FILE、$PACKAGE）"})
		}
		sb.WriteString(formatTable(rows, "    "))

		sb.WriteString("    示例:\n")
		fmt.Fprintf(&sb, "      @%s\n", annotations[0])
		fmt.Fprintf(&sb, "      @%s(output=$FILE_shape.go)\n", annotations[0])
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatParamDef 格式化单个参数定义
func FormatParamDef(param ParamDef) string {
	parts := []string{param.Name}
	if param.Required {
		parts = append(parts, "required")
	} else {
		parts = append(parts, "optional")
	}
	if param.Default != "" {
		parts = append(parts, "default="+param.Default)
	}
	if param.Description != "" {
		parts = append(parts, param.Description)
	}
	return strings.Join(parts, ", ")
}

// formatTable 按显示宽度对齐各列，最后一列不补齐
func formatTable(rows [][]string, indent string) string {
	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	var sb strings.Builder
	for _, row := range rows {
		var line strings.Builder
		line.WriteString(indent)
		for i, cell := range row {
			if i == len(row)-1 {
				line.WriteString(cell)
				break
			}
			line.WriteString(runewidth.FillRight(cell, widths[i]))
			line.WriteString("  ")
		}
		sb.WriteString(strings.TrimRight(line.String(), " "))
		sb.WriteString("\n")
	}
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "是"
	}
	return "否"
}
