package structparse

import (
	"go/ast"
	"reflect"
)

// ImportInfo 导入信息
type ImportInfo struct {
	Alias       string // 显式别名（如果有）
	PackageName string // 真实包名（从 package 声明读取）
	ImportPath  string // 完整导入路径
}

// Imports 文件内可见的包名 -> 导入信息
type Imports map[string]*ImportInfo

// FieldInfo 结构体字段信息
type FieldInfo struct {
	Name     string            // 字段名，嵌入字段为类型名
	Type     ast.Expr          // 字段类型
	TypeText string            // 字段类型的源码文本
	Tag      reflect.StructTag // 字段标签
	Embedded bool              // 未展开的嵌入字段

	// SourceType 字段来源，为空表示来自结构体本身，否则为嵌入的结构体类型
	SourceType string
	// PkgPath 字段声明所在包的导入路径，为空表示与被解析的结构体同包
	PkgPath string
	// Imports 字段声明所在文件的导入，用于解析 Type 中的包名
	Imports Imports
}

// StructInfo 结构体信息
type StructInfo struct {
	Name        string      // 结构体名称
	PackageName string      // 包名
	FilePath    string      // 结构体所在文件路径
	Fields      []FieldInfo // 字段列表，嵌入结构体按位置展开
	Imports     Imports     // 结构体所在文件的导入
}

// maxEmbeddingDepth 最大嵌套深度限制
const maxEmbeddingDepth = 10
