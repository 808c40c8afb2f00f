package cycle

// @Shape
type A struct {
	B *B `shape:"nested"`
}

// @Shape
type B struct {
	A *A `shape:"nested"`
}
