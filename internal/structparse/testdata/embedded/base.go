package embedded

import "time"

type Base struct {
	ID        string `json:"id"`
	CreatedAt time.Time
}

// Audit 指针嵌入 Base
type Audit struct {
	*Base
	Note string
}

type Profile struct {
	Bio string
}
