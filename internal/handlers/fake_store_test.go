package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"expense-diary/internal/models"
	"expense-diary/internal/store"
)

// fakeStore is an in-memory DiaryStore with the same ownership and audit
// semantics as the Postgres implementation.
type fakeStore struct {
	mu       sync.Mutex
	users    map[int]models.User
	expenses map[int]models.Expense
	audits   []models.AuditLogEntry
	nextUser int
	nextExp  int
	nextLog  int
	clock    time.Time

	// readErr, when set, fails user lookups to simulate a lost database
	readErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int]models.User),
		expenses: make(map[int]models.Expense),
		clock:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake clock so ordering by timestamp is deterministic.
func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) appendAudit(userID int, actionType string, recordID int) {
	f.nextLog++
	entry := models.AuditLogEntry{
		ID:         f.nextLog,
		UserID:     userID,
		ActionType: actionType,
		ActionTime: f.clock,
	}
	if recordID != 0 {
		id := recordID
		entry.RecordID = &id
	}
	f.audits = append(f.audits, entry)
}

func (f *fakeStore) CreateUser(ctx context.Context, username, password string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Username == username {
			return models.User{}, store.ErrDuplicateUsername
		}
	}

	hash, err := models.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}

	f.nextUser++
	user := models.User{
		ID:           f.nextUser,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    f.tick(),
	}
	f.users[user.ID] = user
	f.appendAudit(user.ID, models.ActionRegistration, 0)
	return user, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id int) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return models.User{}, f.readErr
	}

	user, ok := f.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return models.User{}, f.readErr
	}

	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (f *fakeStore) UpdateUser2FA(ctx context.Context, userID int, totpSecret string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.TOTPSecret = totpSecret
	user.TOTPEnabled = enabled
	f.users[userID] = user
	f.tick()
	f.appendAudit(userID, models.ActionEnable2FA, 0)
	return nil
}

func (f *fakeStore) Disable2FA(ctx context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.TOTPSecret = ""
	user.TOTPEnabled = false
	f.users[userID] = user
	f.tick()
	f.appendAudit(userID, models.ActionDisable2FA, 0)
	return nil
}

func (f *fakeStore) AddExpense(ctx context.Context, userID int, amount float64, category, description string) (models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextExp++
	e := models.Expense{
		ID:          f.nextExp,
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Description: description,
		CreatedAt:   f.tick(),
	}
	f.expenses[e.ID] = e
	f.appendAudit(userID, models.ActionAdd, e.ID)
	return e, nil
}

func (f *fakeStore) GetExpense(ctx context.Context, id int) (models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.expenses[id]
	if !ok {
		return models.Expense{}, store.ErrNotFound
	}
	return e, nil
}

func (f *fakeStore) ListExpenses(ctx context.Context, userID int) ([]models.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var expenses []models.Expense
	for _, e := range f.expenses {
		if e.UserID == userID {
			expenses = append(expenses, e)
		}
	}
	sort.Slice(expenses, func(i, j int) bool {
		if !expenses[i].CreatedAt.Equal(expenses[j].CreatedAt) {
			return expenses[i].CreatedAt.After(expenses[j].CreatedAt)
		}
		return expenses[i].ID > expenses[j].ID
	})
	return expenses, nil
}

func (f *fakeStore) UpdateExpense(ctx context.Context, userID, id int, upd models.ExpenseUpdate) error {
	if upd.Empty() {
		return store.ErrNoFields
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.expenses[id]
	if !ok || e.UserID != userID {
		return store.ErrNotFound
	}

	if upd.Amount != nil {
		e.Amount = *upd.Amount
	}
	if upd.Category != nil {
		e.Category = *upd.Category
	}
	if upd.Description != nil {
		e.Description = *upd.Description
	}
	f.expenses[id] = e
	f.tick()
	f.appendAudit(userID, models.ActionEdit, id)
	return nil
}

func (f *fakeStore) DeleteExpense(ctx context.Context, userID, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.expenses[id]
	if !ok || e.UserID != userID {
		return store.ErrNotFound
	}

	delete(f.expenses, e.ID)
	f.tick()
	f.appendAudit(userID, models.ActionDelete, id)
	return nil
}

func (f *fakeStore) InsertAudit(ctx context.Context, userID int, actionType string, recordID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tick()
	f.appendAudit(userID, actionType, recordID)
	return nil
}

func (f *fakeStore) ListAudit(ctx context.Context, userID int) ([]models.AuditLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entries []models.AuditLogEntry
	for _, entry := range f.audits {
		if entry.UserID == userID {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ActionTime.Equal(entries[j].ActionTime) {
			return entries[i].ActionTime.After(entries[j].ActionTime)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

// auditActions returns the user's audit action types, newest first.
func (f *fakeStore) auditActions(userID int) []string {
	entries, _ := f.ListAudit(context.Background(), userID)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.ActionType)
	}
	return actions
}
