package model

import "time"

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Category    string    `json:"category"`
	Image       string    `json:"image"`
	Stock       int       `json:"stock"`
	Position    int       `json:"position"`
	Featured    bool      `json:"featured"`
	Ingredients string    `json:"ingredients,omitempty"`
	Benefits    string    `json:"benefits,omitempty"`
	HowToUse    string    `json:"how_to_use,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
