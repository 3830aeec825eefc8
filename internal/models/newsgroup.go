package models

import "time"

type Newsgroup struct {
	ID        int32     `db:"id" toml:"id"`
	Name      string    `db:"name" toml:"name"`
	CreatedAt time.Time `db:"created_at" toml:"created_at"`
}
