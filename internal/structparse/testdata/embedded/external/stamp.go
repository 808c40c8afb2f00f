// Package stamps 目录名与包名不同
package stamps

type Stamp struct {
	Version int
	Owner   Org
}

type Org struct {
	Name string
}
