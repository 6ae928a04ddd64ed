package domain

import "time"

type Supplier struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	ContactNumber string    `json:"contact_number"`
	GSTINNumber   string    `json:"gstin_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
