package models

// User is a row in the relational user directory. Only the fields the
// messaging core denormalizes into messages and summaries are carried.
type User struct {
	ID       int    `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Phone    string `db:"phone" json:"phone"`
	Photo    string `db:"photo" json:"photo"`
}
