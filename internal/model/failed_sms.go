package model

import "time"

type FailedSMS struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OriginalNumber string    `json:"original_number"`
	Normalized     string    `json:"normalized"`
	Message        string    `json:"message"`
	Info           string    `json:"info"`
	CreatedAt      time.Time `json:"created_at"`
	Resolved       bool      `json:"resolved"`
}
