package embedded

import (
	"time"

	"github.com/donutnomad/shapegen/internal/structparse/testdata/embedded/external"
)

type User struct {
	Audit
	Name, Email string `json:"name"`
	stamps.Stamp
	time.Time
	Profile `shape:"nested"`
	Org     *stamps.Org
}

type Loop struct {
	*LoopBack
}

type LoopBack struct {
	*Loop
}

type (
	Grouped struct {
		Value int
	}
)
