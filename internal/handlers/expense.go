package handlers

import (
	"log"
	"net/http"
	"strconv"

	"expense-diary/internal/models"
	"expense-diary/internal/store"
)

// AddExpenseHandler creates an expense owned by the current user.
func (h *Handler) AddExpenseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := CurrentUserID(r)
	format := RequestFormat(r)

	fields, err := decodePayload(r, format)
	if err != nil {
		h.failAdd(w, format, "Invalid request")
		return
	}

	amountStr := fields["amount"]
	category := fields["category"]
	if amountStr == "" || category == "" {
		h.failAdd(w, format, "Amount and category required")
		return
	}

	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		h.failAdd(w, format, "Invalid amount")
		return
	}
	if amount <= 0 {
		h.failAdd(w, format, "Amount must be positive")
		return
	}

	expense, err := h.Store.AddExpense(r.Context(), userID, amount, category, fields["description"])
	if err != nil {
		log.Println("add expense:", err)
		if format == FormatJSON {
			jsonError(w, http.StatusInternalServerError, "Server error")
			return
		}
		h.RenderPage(w, "add", map[string]any{"Error": "Server error"})
		return
	}

	h.publishActivity(r.Context(), userID, models.ActionAdd, expense.ID)

	if format == FormatJSON {
		respondJSON(w, http.StatusCreated, map[string]any{
			"message":    "Expense added",
			"expense_id": expense.ID,
		})
		return
	}
	http.Redirect(w, r, "/list_page", http.StatusSeeOther)
}

func (h *Handler) failAdd(w http.ResponseWriter, format Format, message string) {
	if format == FormatJSON {
		jsonError(w, http.StatusBadRequest, message)
		return
	}
	w.WriteHeader(http.StatusBadRequest)
	h.RenderPage(w, "add", map[string]any{"Error": message})
}

// ListExpensesHandler returns the current user's expenses, newest first.
func (h *Handler) ListExpensesHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r)

	expenses, err := h.Store.ListExpenses(r.Context(), userID)
	if err != nil {
		log.Println("list expenses:", err)
		jsonError(w, http.StatusInternalServerError, "Server error")
		return
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}

	if err := h.Store.InsertAudit(r.Context(), userID, models.ActionViewList, 0); err != nil {
		log.Println("audit view_list:", err)
	}
	h.publishActivity(r.Context(), userID, models.ActionViewList, 0)

	respondJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

// EditExpenseHandler applies a partial update to an owned expense. A missing
// expense and someone else's expense both fail the same way.
func (h *Handler) EditExpenseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := CurrentUserID(r)
	format := RequestFormat(r)

	id, err := pathID(r.URL.Path, "/edit/")
	if err != nil {
		h.failEdit(w, r, format, http.StatusBadRequest, "Invalid ID")
		return
	}

	fields, err := decodePayload(r, format)
	if err != nil {
		h.failEdit(w, r, format, http.StatusBadRequest, "Invalid request")
		return
	}

	var upd models.ExpenseUpdate
	if v, ok := fields["amount"]; ok {
		amount, err := strconv.ParseFloat(v, 64)
		if err != nil || amount <= 0 {
			h.failEdit(w, r, format, http.StatusBadRequest, "Amount must be positive")
			return
		}
		upd.Amount = &amount
	}
	if v, ok := fields["category"]; ok {
		upd.Category = &v
	}
	if v, ok := fields["description"]; ok {
		upd.Description = &v
	}
	if upd.Empty() {
		h.failEdit(w, r, format, http.StatusBadRequest, "No fields to update")
		return
	}

	switch err := h.Store.UpdateExpense(r.Context(), userID, id, upd); err {
	case nil:
	case store.ErrNotFound:
		h.failEdit(w, r, format, http.StatusForbidden, "Not authorized")
		return
	default:
		log.Println("update expense:", err)
		h.failEdit(w, r, format, http.StatusInternalServerError, "Server error")
		return
	}

	h.publishActivity(r.Context(), userID, models.ActionEdit, id)

	if format == FormatJSON {
		respondJSON(w, http.StatusOK, map[string]any{"message": "Expense updated"})
		return
	}
	http.Redirect(w, r, "/list_page", http.StatusSeeOther)
}

func (h *Handler) failEdit(w http.ResponseWriter, r *http.Request, format Format, status int, message string) {
	if format == FormatJSON {
		jsonError(w, status, message)
		return
	}
	http.Redirect(w, r, "/list_page", http.StatusSeeOther)
}

// DeleteExpenseHandler removes an owned expense. Always answers JSON; the
// browser flow uses DeleteExpenseFormHandler.
func (h *Handler) DeleteExpenseHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := CurrentUserID(r)

	id, err := pathID(r.URL.Path, "/delete/")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "Invalid ID")
		return
	}

	switch err := h.Store.DeleteExpense(r.Context(), userID, id); err {
	case nil:
	case store.ErrNotFound:
		jsonError(w, http.StatusForbidden, "Not authorized")
		return
	default:
		log.Println("delete expense:", err)
		jsonError(w, http.StatusInternalServerError, "Server error")
		return
	}

	h.publishActivity(r.Context(), userID, models.ActionDelete, id)
	respondJSON(w, http.StatusOK, map[string]any{"message": "Expense deleted"})
}

// DeleteExpenseFormHandler is the form-only delete: it redirects back to the
// list whether or not the delete was allowed.
func (h *Handler) DeleteExpenseFormHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, _ := CurrentUserID(r)

	id, err := pathID(r.URL.Path, "/delete_html/")
	if err != nil {
		http.Redirect(w, r, "/list_page", http.StatusSeeOther)
		return
	}

	switch err := h.Store.DeleteExpense(r.Context(), userID, id); err {
	case nil:
		h.publishActivity(r.Context(), userID, models.ActionDelete, id)
	case store.ErrNotFound:
	default:
		log.Println("delete expense:", err)
	}

	http.Redirect(w, r, "/list_page", http.StatusSeeOther)
}
