package models

import "time"

type Article struct {
	ID        int32     `db:"id" toml:"id"`
	GroupID   int32     `db:"group_id" toml:"group_id"`
	Title     string    `db:"title" toml:"title"`
	Author    string    `db:"author" toml:"author"`
	Text      string    `db:"text" toml:"text"`
	CreatedAt time.Time `db:"created_at" toml:"created_at"`
}
