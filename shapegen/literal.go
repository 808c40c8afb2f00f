package shapegen

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
)

// evalString 求值字符串常量表达式
// 支持字符串字面量、括号、+ 拼接，以及引用同一文件中的其它字符串常量
func evalString(expr ast.Expr, file *ast.File) (string, error) {
	return evalStringExpr(expr, file, make(map[string]bool))
}

func evalStringExpr(expr ast.Expr, file *ast.File, seen map[string]bool) (string, error) {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind != token.STRING {
			return "", fmt.Errorf("%s 不是字符串字面量", e.Value)
		}
		return strconv.Unquote(e.Value)
	case *ast.ParenExpr:
		return evalStringExpr(e.X, file, seen)
	case *ast.BinaryExpr:
		if e.Op != token.ADD {
			return "", fmt.Errorf("不支持的运算符 %s", e.Op)
		}
		left, err := evalStringExpr(e.X, file, seen)
		if err != nil {
			return "", err
		}
		right, err := evalStringExpr(e.Y, file, seen)
		if err != nil {
			return "", err
		}
		return left + right, nil
	case *ast.Ident:
		if seen[e.Name] {
			return "", fmt.Errorf("常量 %s 循环引用", e.Name)
		}
		value, ok := findConst(file, e.Name)
		if !ok {
			return "", fmt.Errorf("%s 不是同一文件中的字符串常量", e.Name)
		}
		seen[e.Name] = true
		defer delete(seen, e.Name)
		return evalStringExpr(value, file, seen)
	default:
		return "", fmt.Errorf("模板只支持字符串字面量及其拼接，得到 %s", types.ExprString(expr))
	}
}

// findConst 查找文件中常量的初始化表达式
func findConst(file *ast.File, name string) (ast.Expr, bool) {
	if file == nil {
		return nil, false
	}
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs, ok := spec.(*ast.ValueSpec)
			if !ok {
				continue
			}
			for i, ident := range vs.Names {
				if ident.Name == name && i < len(vs.Values) {
					return vs.Values[i], true
				}
			}
		}
	}
	return nil, false
}
