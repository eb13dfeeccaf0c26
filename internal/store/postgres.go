package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"expense-diary/internal/models"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	// Apply migrations for existing tables
	migrations := []string{
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS totp_secret VARCHAR(255);`,
		`ALTER TABLE users ADD COLUMN IF NOT EXISTS totp_enabled BOOLEAN DEFAULT FALSE;`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// User methods

// CreateUser stores a new user and its registration audit row in one
// transaction. The plaintext password is hashed and never stored.
func (s *PostgresStore) CreateUser(ctx context.Context, username, password string) (models.User, error) {
	passwordHash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.User{}, err
	}
	defer tx.Rollback()

	var user models.User
	err = tx.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, username, password_hash, created_at`,
		username, passwordHash,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return models.User{}, ErrDuplicateUsername
		}
		return models.User{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action_type) VALUES ($1, $2)`,
		user.ID, models.ActionRegistration,
	); err != nil {
		return models.User{}, err
	}

	return user, tx.Commit()
}

func (s *PostgresStore) GetUser(ctx context.Context, id int) (models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, totp_secret, totp_enabled, created_at
		 FROM users WHERE id = $1`,
		id,
	))
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, totp_secret, totp_enabled, created_at
		 FROM users WHERE username = $1`,
		username,
	))
}

func (s *PostgresStore) scanUser(row *sql.Row) (models.User, error) {
	var user models.User
	var totpSecret sql.NullString

	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &totpSecret, &user.TOTPEnabled, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	if totpSecret.Valid {
		user.TOTPSecret = totpSecret.String
	}

	return user, nil
}

func (s *PostgresStore) UpdateUser2FA(ctx context.Context, userID int, totpSecret string, enabled bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET totp_secret = $1, totp_enabled = $2 WHERE id = $3`,
		totpSecret, enabled, userID,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action_type) VALUES ($1, $2)`,
		userID, models.ActionEnable2FA,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) Disable2FA(ctx context.Context, userID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET totp_secret = NULL, totp_enabled = FALSE WHERE id = $1`,
		userID,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action_type) VALUES ($1, $2)`,
		userID, models.ActionDisable2FA,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Expense methods

// AddExpense inserts the expense and its audit row atomically.
func (s *PostgresStore) AddExpense(ctx context.Context, userID int, amount float64, category, description string) (models.Expense, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Expense{}, err
	}
	defer tx.Rollback()

	var e models.Expense
	err = tx.QueryRowContext(ctx,
		`INSERT INTO expenses (user_id, amount, category, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, user_id, amount, category, description, created_at`,
		userID, amount, category, description,
	).Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Description, &e.CreatedAt)
	if err != nil {
		return models.Expense{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action_type, record_id) VALUES ($1, $2, $3)`,
		userID, models.ActionAdd, e.ID,
	); err != nil {
		return models.Expense{}, err
	}

	return e, tx.Commit()
}

func (s *PostgresStore) GetExpense(ctx context.Context, id int) (models.Expense, error) {
	var e models.Expense
	var description sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, category, description, created_at
		 FROM expenses WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &description, &e.CreatedAt)

	if err == sql.ErrNoRows {
		return models.Expense{}, ErrNotFound
	}
	if err != nil {
		return models.Expense{}, err
	}

	e.Description = description.String
	return e, nil
}

func (s *PostgresStore) ListExpenses(ctx context.Context, userID int) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, amount, category, description, created_at
		 FROM expenses WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		var description sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &description, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Description = description.String
		expenses = append(expenses, e)
	}

	return expenses, rows.Err()
}

// UpdateExpense applies a partial edit. The ownership check, the update and
// the audit row share one transaction, so a non-owner can never modify the
// row and a committed edit is always audited.
func (s *PostgresStore) UpdateExpense(ctx context.Context, userID, id int, upd models.ExpenseUpdate) error {
	if upd.Empty() {
		return ErrNoFields
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ownerID, err := lockExpenseOwner(ctx, tx, id)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrNotFound
	}

	set := []string{}
	args := []any{}
	if upd.Amount != nil {
		args = append(args, *upd.Amount)
		set = append(set, fmt.Sprintf("amount = $%d", len(args)))
	}
	if upd.Category != nil {
		args = append(args, *upd.Category)
		set = append(set, fmt.Sprintf("category = $%d", len(args)))
	}
	if upd.Description != nil {
		args = append(args, *upd.Description)
		set = append(set, fmt.Sprintf("description = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE expenses SET %s WHERE id = $%d", strings.Join(set, ", "), len(args))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action_type, record_id) VALUES ($1, $2, $3)`,
		userID, models.ActionEdit, id,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) DeleteExpense(ctx context.Context, userID, id int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ownerID, err := lockExpenseOwner(ctx, tx, id)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses WHERE id = $1`, id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action_type, record_id) VALUES ($1, $2, $3)`,
		userID, models.ActionDelete, id,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func lockExpenseOwner(ctx context.Context, tx *sql.Tx, id int) (int, error) {
	var ownerID int
	err := tx.QueryRowContext(ctx,
		`SELECT user_id FROM expenses WHERE id = $1 FOR UPDATE`, id,
	).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return ownerID, err
}

// Audit methods

func (s *PostgresStore) InsertAudit(ctx context.Context, userID int, actionType string, recordID int) error {
	record := sql.NullInt64{Int64: int64(recordID), Valid: recordID != 0}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (user_id, action_type, record_id) VALUES ($1, $2, $3)`,
		userID, actionType, record,
	)
	return err
}

func (s *PostgresStore) ListAudit(ctx context.Context, userID int) ([]models.AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, action_type, record_id, action_time
		 FROM audit_log WHERE user_id = $1 ORDER BY action_time DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var entry models.AuditLogEntry
		var recordID sql.NullInt64
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.ActionType, &recordID, &entry.ActionTime); err != nil {
			return nil, err
		}
		if recordID.Valid {
			id := int(recordID.Int64)
			entry.RecordID = &id
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
