package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/donutnomad/shapegen/plugin"
	"github.com/fatih/color"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [路径...]",
		Short: "检查生成文件是否最新，不写入文件（用于 CI）",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runVerify(cmd.Context(), cmd.OutOrStdout(), args)
		},
	}
}

// fileDiff 磁盘内容与生成内容不一致的文件
type fileDiff struct {
	Path string
	Diff string // unified diff，文件不存在时为空
}

func (a *app) runVerify(ctx context.Context, w io.Writer, patterns []string) error {
	opts := a.runOptions(patterns)
	opts.DryRun = true

	stats, err := plugin.RunWithOptions(ctx, opts)
	if err != nil {
		return err
	}

	diffs, err := diffGenerated(stats.Files)
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		color.New(color.FgGreen).Fprintf(w, "%d 个生成文件均为最新\n", stats.FileCount())
		return nil
	}

	for _, d := range diffs {
		if d.Diff == "" {
			color.New(color.FgYellow).Fprintf(w, "缺少生成文件: %s\n", d.Path)
			continue
		}
		writeColoredDiff(w, d.Diff)
	}
	return fmt.Errorf("%d 个生成文件已过期，请运行 shapegen gen", len(diffs))
}

// diffGenerated 与磁盘上的文件逐个比较，按路径排序返回
func diffGenerated(files map[string][]byte) ([]fileDiff, error) {
	paths := lo.Keys(files)
	slices.Sort(paths)

	var diffs []fileDiff
	for _, path := range paths {
		existing, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			diffs = append(diffs, fileDiff{Path: path})
			continue
		}
		if err != nil {
			return nil, err
		}
		if bytes.Equal(existing, files[path]) {
			continue
		}

		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(existing)),
			B:        difflib.SplitLines(string(files[path])),
			FromFile: path + " (当前)",
			ToFile:   path + " (生成)",
			Context:  3,
		})
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, fileDiff{Path: path, Diff: text})
	}
	return diffs, nil
}

func writeColoredDiff(w io.Writer, diff string) {
	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			color.New(color.Bold).Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			color.New(color.FgCyan).Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			color.New(color.FgGreen).Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			color.New(color.FgRed).Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}
