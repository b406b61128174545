package entity

import "time"

// Client is a saved billing client. Read-mostly: the approval and delivery
// workflows only ever reference it by id.
type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}
