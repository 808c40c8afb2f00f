package invalid

// @Shape(name=Item)
type First struct {
	ID string
}

// @Shape(name=Item)
type Second struct {
	ID string
}

// @Shape
type BadTag struct {
	Value string `shape:"alias=a,exp=.b"`
}

// @Shape
type BadNested struct {
	Values map[string]First `shape:"nested"`
}

// @ShapedQuery
const missingTemplate = "select X { shape::Missing }"

// @ShapedQuery
var notLiteral = fmtQuery()

func fmtQuery() string { return "" }
