package models

import (
	"time"

	"github.com/lib/pq"
)

// Subject groups papers and tickets; admins and SPOCs listed here are
// allowed to manage it.
type Subject struct {
	ID        string         `db:"id" json:"id"`
	Name      string         `db:"name" json:"name"`
	AdminIDs  pq.StringArray `db:"admin_ids" json:"adminIds"`
	SpocIDs   pq.StringArray `db:"spoc_ids" json:"spocIds"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}
