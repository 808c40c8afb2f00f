package shapegen

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/donutnomad/gg"
	"github.com/donutnomad/shapegen/shape"
)

// shapeImportPath 生成代码依赖的运行时包
const shapeImportPath = "github.com/donutnomad/shapegen/shape"

// Emit 生成一个输出文件的 gg 定义
//
//	func (u User) Shape() string {
//		return "id, org := .org { " + Organization{}.Shape() + " }, "
//	}
//
//	func init() {
//		shape.MustRegister("User", User{}.Shape)
//	}
//
//	var userQuery = shape.NewQuery(userTemplate)
func (p *Project) Emit(file *OutputFile) (*gg.Generator, error) {
	pkgName, err := file.packageName()
	if err != nil {
		return nil, err
	}

	gen := gg.New()
	gen.SetPackage(pkgName)
	shapePkg := gen.P(shapeImportPath)

	for i, m := range file.Models {
		if i > 0 {
			gen.Body().AddLine()
		}
		if err := p.emitShapeMethod(gen, m); err != nil {
			return nil, err
		}
	}

	if len(file.Models) > 0 {
		body := make([]any, 0, len(file.Models))
		for _, m := range file.Models {
			body = append(body, shapePkg.Call("MustRegister", gg.Lit(m.Name), m.TypeName+"{}.Shape"))
		}
		gen.Body().AddLine()
		gen.Body().NewFunction("init").AddBody(body...)
	}

	if len(file.Queries) > 0 {
		gen.Body().AddLine()
		varGroup := gg.Var()
		for _, q := range file.Queries {
			args := []any{q.Source}
			if q.Namespace != shape.DefaultNamespace {
				args = append(args, shapePkg.Call("WithNamespace", gg.Lit(q.Namespace)))
			}
			varGroup.AddField(q.VarName, shapePkg.Call("NewQuery", args...))
		}
		gen.Body().Append(varGroup)
	}

	return gen, nil
}

// emitShapeMethod 生成 Shape() 方法
// 字面片段原样输出，嵌套片段调用被引用类型的 Shape()
func (p *Project) emitShapeMethod(gen *gg.Generator, m *Model) error {
	compiled, err := p.Compiled(m)
	if err != nil {
		return err
	}

	expr := gg.NewInlineGroup().Append(gg.S("return "))
	if len(compiled.Segments) == 0 {
		expr.Append(gg.Lit(""))
	}
	for i, seg := range compiled.Segments {
		if i > 0 {
			expr.Append(gg.S(" + "))
		}
		if !seg.IsRef() {
			expr.Append(gg.Lit(seg.Text))
			continue
		}

		ref, ok := p.byKey[seg.Ref]
		if !ok {
			return &shape.UnknownTypeError{Type: m.TypeName, Field: seg.Field, TypeName: seg.Ref}
		}
		if ref.PkgPath == m.PkgPath {
			expr.Append(gg.S("%s{}.Shape()", ref.TypeName))
			continue
		}
		pkgRef := gen.PAlias(ref.PkgPath, ref.PkgName)
		expr.Append(pkgRef.Type(ref.TypeName), gg.S("{}.Shape()"))
	}

	gen.Body().Append(gg.LineComment("Shape 返回 %s 的投影文本", m.TypeName))
	gen.Body().NewFunction("Shape").
		WithReceiver(receiverName(m.TypeName), m.TypeName).
		AddResult("", "string").
		AddBody(expr)
	return nil
}

func (f *OutputFile) packageName() (string, error) {
	var names []string
	for _, m := range f.Models {
		names = append(names, m.PkgName)
	}
	for _, q := range f.Queries {
		names = append(names, q.PkgName)
	}
	if len(names) == 0 {
		return "", errors.New("没有需要生成的内容")
	}
	for _, name := range names[1:] {
		if name != names[0] {
			return "", fmt.Errorf("输出文件 %s 中的包名不一致: %s vs %s", f.Path, names[0], name)
		}
	}
	return names[0], nil
}

func receiverName(typeName string) string {
	r, _ := utf8.DecodeRuneInString(typeName)
	return string(unicode.ToLower(r))
}
