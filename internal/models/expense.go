package models

import "time"

type Expense struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExpenseUpdate carries a partial edit. Nil fields are left unchanged.
type ExpenseUpdate struct {
	Amount      *float64
	Category    *string
	Description *string
}

// Empty reports whether the update touches no fields.
func (u ExpenseUpdate) Empty() bool {
	return u.Amount == nil && u.Category == nil && u.Description == nil
}
