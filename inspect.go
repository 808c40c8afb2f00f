package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/bytedance/sonic"
	"github.com/donutnomad/shapegen/plugin"
	"github.com/donutnomad/shapegen/shapegen"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// defaultInspectFormat 默认的文本输出
const defaultInspectFormat = `{{- range .Shapes }}
{{ .Name }}{{ if ne .Name .Type }} ({{ .Type }}){{ end }}  {{ .Position }}
  {{ .Text | trimSuffix ", " }}
{{- end }}
{{- range .Queries }}
{{ .Name }} <- {{ .Source }}{{ if ne .Namespace "shape" }} [{{ .Namespace }}]{{ end }}  {{ .Position }}
  {{ .Expanded }}
{{- end }}
{{- if .Errors }}

{{ len .Errors }} 个错误:
{{- range .Errors }}
  {{ . }}
{{- end }}
{{- end }}
`

type inspectOptions struct {
	json   bool
	format string
}

func newInspectCommand(a *app) *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect [路径...]",
		Short: "输出编译后的 shape 文本和展开后的查询",
		Example: `  shapegen inspect ./models
  shapegen inspect --json ./...
  shapegen inspect --format '{{range .Shapes}}{{.Name | upper}}{{"\n"}}{{end}}' ./...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.inspect(cmd.Context(), args)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "以 JSON 输出")
	cmd.Flags().StringVar(&opts.format, "format", "", "Go 模板（支持 sprig 函数）")
	return cmd
}

// inspectReport inspect 的输出
type inspectReport struct {
	Shapes  []shapeReport `json:"shapes"`
	Queries []queryReport `json:"queries"`
	Errors  []string      `json:"errors,omitempty"`
}

type shapeReport struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Key      string `json:"key"`
	Position string `json:"position"`
	Text     string `json:"text"`
}

type queryReport struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	Namespace string `json:"namespace"`
	Position  string `json:"position"`
	Template  string `json:"template"`
	Expanded  string `json:"expanded"`
}

func (a *app) inspect(ctx context.Context, patterns []string) (*inspectReport, error) {
	gen := shapegen.NewShapeGenerator()
	scanner := plugin.NewScanner(plugin.WithAnnotationFilter(gen.Annotations()...), plugin.WithScannerLogger(a.log))
	result, err := scanner.Scan(ctx, defaultPatterns(patterns)...)
	if err != nil {
		return nil, fmt.Errorf("扫描失败: %w", err)
	}

	project, errs := shapegen.Analyze(result.All(), &shapegen.AnalyzeOptions{
		PackageConfigs: result.PackageConfigs,
		Options:        a.cfg.Options(),
	})
	return buildReport(project, errs), nil
}

func buildReport(project *shapegen.Project, errs []error) *inspectReport {
	report := &inspectReport{
		Shapes:  []shapeReport{},
		Queries: []queryReport{},
		Errors:  lo.Map(errs, func(err error, _ int) string { return err.Error() }),
	}
	if project == nil {
		return report
	}

	for _, m := range project.Models {
		text, err := project.Shape(m.Name)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			continue
		}
		report.Shapes = append(report.Shapes, shapeReport{
			Name:     m.Name,
			Type:     m.TypeName,
			Key:      m.Key,
			Position: shortPosition(m.Position.Filename, m.Position.Line),
			Text:     text,
		})
	}
	for _, q := range project.Queries {
		report.Queries = append(report.Queries, queryReport{
			Name:      q.VarName,
			Source:    q.Source,
			Namespace: q.Namespace,
			Position:  shortPosition(q.Position.Filename, q.Position.Line),
			Template:  q.Template,
			Expanded:  q.Expanded,
		})
	}
	return report
}

// shortPosition 当前目录下的文件输出相对路径
func shortPosition(filename string, line int) string {
	if wd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(wd, filename); err == nil && filepath.IsLocal(rel) {
			filename = rel
		}
	}
	return fmt.Sprintf("%s:%d", filename, line)
}

func (o *inspectOptions) render(w io.Writer, report *inspectReport) error {
	if o.json {
		data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	format := o.format
	if format == "" {
		format = defaultInspectFormat
	}
	tmpl, err := template.New("inspect").Funcs(sprig.TxtFuncMap()).Parse(format)
	if err != nil {
		return fmt.Errorf("解析模板失败: %w", err)
	}
	if err := tmpl.Execute(w, report); err != nil {
		return fmt.Errorf("执行模板失败: %w", err)
	}
	return nil
}
