package structparse

import (
	"fmt"
	"go/ast"
	"go/types"
	"path/filepath"
	"reflect"
	"strconv"
)

// ParseStruct 解析指定文件中的结构体
func ParseStruct(filename, structName string) (*StructInfo, error) {
	return NewParseContextFromDir(filepath.Dir(filename)).ParseStruct(filename, structName)
}

// ParseStruct 解析指定文件中的结构体，嵌入结构体按位置展开
func (c *ParseContext) ParseStruct(filename, structName string) (*StructInfo, error) {
	abs, err := filepath.Abs(filename)
	if err != nil {
		return nil, err
	}
	key := stackKey(filepath.Dir(abs), structName)
	return c.parseStruct(abs, structName, "", map[string]bool{key: true})
}

func (c *ParseContext) parseStruct(filename, structName, pkgPath string, stack map[string]bool) (*StructInfo, error) {
	file, err := c.ParseFile(filename)
	if err != nil {
		return nil, err
	}

	spec, st := findStructSpec(file, structName)
	if spec == nil {
		return nil, fmt.Errorf("未在文件 %s 中找到结构体 %s", filename, structName)
	}
	if spec.TypeParams != nil && len(spec.TypeParams.List) > 0 {
		return nil, fmt.Errorf("结构体 %s 带有类型参数，不支持解析", structName)
	}

	imports := c.extractImports(file)
	info := &StructInfo{
		Name:        structName,
		PackageName: file.Name.Name,
		FilePath:    filename,
		Imports:     imports,
	}

	for _, field := range st.Fields.List {
		fields, err := c.parseField(field, filename, pkgPath, imports, stack)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", structName, err)
		}
		info.Fields = append(info.Fields, fields...)
	}

	return info, nil
}

// parseField 解析单个字段声明，一个声明可能包含多个字段名
func (c *ParseContext) parseField(field *ast.Field, filename, pkgPath string, imports Imports, stack map[string]bool) ([]FieldInfo, error) {
	var tag reflect.StructTag
	if field.Tag != nil {
		raw, err := strconv.Unquote(field.Tag.Value)
		if err != nil {
			return nil, fmt.Errorf("字段标签 %s 无效: %w", field.Tag.Value, err)
		}
		tag = reflect.StructTag(raw)
	}

	base := FieldInfo{
		Type:     field.Type,
		TypeText: types.ExprString(field.Type),
		Tag:      tag,
		PkgPath:  pkgPath,
		Imports:  imports,
	}

	if len(field.Names) == 0 {
		base.Name = embeddedName(field.Type)
		if c.shouldExpand(tag) {
			expanded, err := c.expandEmbedded(field.Type, filename, pkgPath, imports, stack)
			switch {
			case err == nil:
				return expanded, nil
			case err != errNotStruct:
				return nil, fmt.Errorf("展开嵌入字段 %s 失败: %w", base.TypeText, err)
			}
		}
		base.Embedded = true
		return []FieldInfo{base}, nil
	}

	fields := make([]FieldInfo, 0, len(field.Names))
	for _, name := range field.Names {
		f := base
		f.Name = name.Name
		fields = append(fields, f)
	}
	return fields, nil
}

// findStructSpec 查找文件中的结构体声明
func findStructSpec(file *ast.File, name string) (*ast.TypeSpec, *ast.StructType) {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok || ts.Name.Name != name || ts.Assign.IsValid() {
				continue
			}
			if st, ok := ts.Type.(*ast.StructType); ok {
				return ts, st
			}
		}
	}
	return nil, nil
}

// embeddedName 嵌入字段的字段名，即去掉指针和包名后的类型名
func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.IndexExpr:
		return embeddedName(t.X)
	case *ast.IndexListExpr:
		return embeddedName(t.X)
	default:
		return types.ExprString(expr)
	}
}
