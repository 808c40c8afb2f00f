package plugin

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGenerator 用于测试的 mock 生成器
type mockGenerator struct {
	*BaseGenerator
	generate func(ctx *GenerateContext) (*GenerateResult, error)
}

func (m *mockGenerator) Generate(ctx *GenerateContext) (*GenerateResult, error) {
	if m.generate != nil {
		return m.generate(ctx)
	}
	return NewGenerateResult(), nil
}

func newMockGenerator(name string, annotations []string, targets []TargetKind, params any) *mockGenerator {
	return &mockGenerator{BaseGenerator: NewBaseGenerator(name, annotations, targets, params)}
}

type helpParams struct {
	Name   string `param:"name=name,required=true,default=,description=注册名"`
	Naming string `param:"name=naming,required=false,default=snake,description=字段命名策略"`
}

func TestFormatHelpText(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newMockGenerator("shapegen", []string{"Shape", "ShapedQuery"},
		[]TargetKind{TargetStruct}, helpParams{})))

	helpText := FormatHelpText(registry)

	for _, expected := range []string{
		"@Shape, @ShapedQuery - shapegen",
		"注册名",
		"snake",
		"output",
		"示例:",
		"@Shape(output=$FILE_shape.go)",
	} {
		assert.Contains(t, helpText, expected)
	}
}

func TestFormatHelpText_Aligned(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(newMockGenerator("shapegen", []string{"Shape"}, []TargetKind{TargetStruct}, helpParams{}))

	var rows []string
	for _, line := range strings.Split(FormatHelpText(registry), "\n") {
		if strings.HasPrefix(line, "    ") && !strings.HasPrefix(line, "    示例") && !strings.HasPrefix(line, "      ") {
			rows = append(rows, line)
		}
	}
	require.Len(t, rows, 4) // 表头 + name + naming + output

	// 说明列的起始显示宽度相同
	column := func(line, desc string) int {
		return runewidth.StringWidth(line[:strings.Index(line, desc)])
	}
	header := column(rows[0], "说明")
	assert.Equal(t, header, column(rows[1], "注册名"))
	assert.Equal(t, header, column(rows[2], "字段命名策略"))
	assert.Equal(t, header, column(rows[3], "输出文件路径"))
}

func TestFormatHelpText_MultipleGenerators(t *testing.T) {
	registry := NewRegistry()
	registry.MustRegister(newMockGenerator("generator1", []string{"Ann1"}, []TargetKind{TargetStruct}, nil))
	registry.MustRegister(newMockGenerator("generator2", []string{"Ann2"}, []TargetKind{TargetVar}, nil))

	helpText := FormatHelpText(registry)
	assert.Contains(t, helpText, "@Ann1 - generator1")
	assert.Contains(t, helpText, "@Ann2 - generator2")
	assert.Less(t, strings.Index(helpText, "generator1"), strings.Index(helpText, "generator2"))
}

func TestFormatHelpText_EmptyRegistry(t *testing.T) {
	assert.Contains(t, FormatHelpText(NewRegistry()), "(暂无已注册的生成器)")
}

func TestFormatParamDef(t *testing.T) {
	tests := []struct {
		name     string
		param    ParamDef
		expected string
	}{
		{
			name:     "required param",
			param:    ParamDef{Name: "test", Required: true, Description: "Test parameter"},
			expected: "test, required, Test parameter",
		},
		{
			name:     "optional param with default",
			param:    ParamDef{Name: "opt", Default: "default", Description: "Optional param"},
			expected: "opt, optional, default=default, Optional param",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatParamDef(tt.param))
		})
	}
}
