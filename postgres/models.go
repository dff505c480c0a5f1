package postgres

import (
	"time"

	"github.com/uptrace/bun"
)

// An entry is one key of client state.
type entry struct {
	bun.BaseModel `bun:"table:client_state"`

	Key       string    `bun:",pk"`
	Value     string    `bun:",notnull"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}
