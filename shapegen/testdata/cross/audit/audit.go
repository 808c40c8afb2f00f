package audit

// @Shape(name=AuditLog, naming=none)
type Log struct {
	Action string
	Actor  string `json:"actor"`
}
