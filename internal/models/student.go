package models

import "time"

// StudentProfile holds the santri enrollment data owned 1:1 by a SANTRI
// account. It is created in the same transaction as the account.
type StudentProfile struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	NIS         string    `db:"nis" json:"nis"`
	Class       string    `db:"class" json:"class"`
	Jilid       string    `db:"jilid" json:"jilid"`
	ParentName  string    `db:"parent_name" json:"parent_name"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	Address     string    `db:"address" json:"address"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// StudentSummary is the roster row ustadz see when picking a santri.
type StudentSummary struct {
	UserID   string `db:"user_id" json:"user_id"`
	FullName string `db:"full_name" json:"full_name"`
	NIS      string `db:"nis" json:"nis"`
	Class    string `db:"class" json:"class"`
	Jilid    string `db:"jilid" json:"jilid"`
}
