// Package shape 提供 EdgeQL 投影（shape）的模型、编译和模板展开。
//
// # 字段注解
//
// 结构体字段通过 shape tag 声明投影方式：
//
//	type User struct {
//	    ID        uuid.UUID     `json:"id"`
//	    FirstName string        `json:"first_name" shape:"exp=.name.first"`
//	    AgeValue  int64         `json:"age_value" shape:"alias=age"`
//	    Org       *Organization `json:"organization" shape:"alias=org,nested"`
//	}
//
// 编译结果为:
//
//	id, first_name := .name.first, age_value := .age, organization := .org { <Organization 的 shape> },
//
// 嵌套类型的 shape 不会在编译期内联，而是保留为对该类型生产函数的调用。
// 生成器（shapegen）为每个 @Shape 结构体生成 Shape() 方法并注册到全局注册表；
// 也可以在运行时通过 RegisterType 反射派生。
//
// # 模板展开
//
// 查询模板中的 shape::User 会被替换为 User 的 shape 文本：
//
//	var userByID = shape.NewQuery(`select User { shape::User } filter .id = <uuid>$0`)
//
//	text, err := userByID.Text() // 只展开一次，之后返回缓存结果
//
// 每个 Query 拥有独立的缓存单元；At 以调用点作为缓存单元，适合直接写字面量模板的场景。
//
// # 错误
//
// 注解冲突、空 alias/exp、nested 字段类型不是具名类型、嵌套引用未注册或成环、
// 模板引用未注册的类型，都是定义错误，满足 errors.Is(err, ErrDefinition)。
package shape
