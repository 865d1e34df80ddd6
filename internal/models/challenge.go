package models

import (
	"time"
)

// Challenge is the single pending-challenge slot for a user. Issuing a new
// challenge overwrites any previous one (last write wins), so at most one
// ceremony per user can complete at a time.
type Challenge struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}
