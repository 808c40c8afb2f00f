package unknown

type Plain struct {
	ID string
}

// @Shape
type Holder struct {
	Plain Plain `shape:"nested"`
}
