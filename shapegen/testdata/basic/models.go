package models

// Organization 组织
//
// @Shape
type Organization struct {
	ID   string `json:"id"`
	Name string
}

// User 用户
//
// @Shape
type User struct {
	ID           string
	FirstName    string         `shape:"exp=.name.first"`
	AgeValue     int            `shape:"alias=age"`
	Organization *Organization  `shape:"alias=org,nested"`
	Teams        []Organization `shape:"nested"`
	Password     string         `json:"-"`
	Skipped      string         `shape:"-"`
	internal     string
}

const userFilter = " filter .id = <uuid>$0"

// @ShapedQuery
const userTemplate = "select User { shape::User }" + userFilter

// @ShapedQuery(name=OrgListQuery, namespace=project)
var orgList = `select Organization { project::Organization }`
