package store

import (
	"context"
	"errors"

	"expense-diary/internal/models"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound covers both a missing expense and an expense owned by
	// another user, so callers cannot tell the two apart.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateUsername is returned when registering a taken username.
	ErrDuplicateUsername = errors.New("username already exists")
	// ErrNoFields is returned for an update that touches no columns.
	ErrNoFields = errors.New("no fields to update")
)

// DiaryStore is the persistence surface for users, expenses and the audit
// log. Every expense operation is scoped to the owning user id; data
// mutations write their audit row in the same transaction.
type DiaryStore interface {
	// User methods
	CreateUser(ctx context.Context, username, password string) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	UpdateUser2FA(ctx context.Context, userID int, totpSecret string, enabled bool) error
	Disable2FA(ctx context.Context, userID int) error

	// Expense methods
	AddExpense(ctx context.Context, userID int, amount float64, category, description string) (models.Expense, error)
	GetExpense(ctx context.Context, id int) (models.Expense, error)
	ListExpenses(ctx context.Context, userID int) ([]models.Expense, error)
	UpdateExpense(ctx context.Context, userID, id int, upd models.ExpenseUpdate) error
	DeleteExpense(ctx context.Context, userID, id int) error

	// Audit methods; recordID 0 means no related record
	InsertAudit(ctx context.Context, userID int, actionType string, recordID int) error
	ListAudit(ctx context.Context, userID int) ([]models.AuditLogEntry, error)
}

// ActivityFeed fans audit entries out to live subscribers (Redis).
type ActivityFeed interface {
	Publish(ctx context.Context, entry models.AuditLogEntry) error
	Recent(ctx context.Context, userID int) ([]models.AuditLogEntry, error)
	Subscribe(ctx context.Context) *redis.PubSub
}
