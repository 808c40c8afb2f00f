package app

import "github.com/donutnomad/shapegen/shapegen/testdata/cross/audit"

// @Shape
type Event struct {
	ID   string
	Logs []audit.Log `shape:"nested"`
}
