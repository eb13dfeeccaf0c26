package handlers

import (
	"log"
	"net/http"

	"expense-diary/internal/models"
	"expense-diary/internal/store"
)

func (h *Handler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/login_page", http.StatusSeeOther)
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.RenderPage(w, "login", nil)
}

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.RenderPage(w, "register", nil)
}

func (h *Handler) AddPage(w http.ResponseWriter, r *http.Request) {
	h.RenderPage(w, "add", nil)
}

// ListPage renders the expense table. Viewing the list is audited, same as
// the JSON endpoint.
func (h *Handler) ListPage(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r)

	expenses, err := h.Store.ListExpenses(r.Context(), userID)
	if err != nil {
		log.Println("list expenses:", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if err := h.Store.InsertAudit(r.Context(), userID, models.ActionViewList, 0); err != nil {
		log.Println("audit view_list:", err)
	}
	h.publishActivity(r.Context(), userID, models.ActionViewList, 0)

	h.RenderPage(w, "list", map[string]any{"Expenses": expenses})
}

// EditPage shows the edit form for an owned expense; anyone else is sent
// back to the list without learning whether the id exists.
func (h *Handler) EditPage(w http.ResponseWriter, r *http.Request) {
	userID, _ := CurrentUserID(r)

	id, err := pathID(r.URL.Path, "/edit_page/")
	if err != nil {
		http.Redirect(w, r, "/list_page", http.StatusSeeOther)
		return
	}

	expense, err := h.Store.GetExpense(r.Context(), id)
	if err == store.ErrNotFound || (err == nil && expense.UserID != userID) {
		http.Redirect(w, r, "/list_page", http.StatusSeeOther)
		return
	}
	if err != nil {
		log.Println("get expense:", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	h.RenderPage(w, "edit", map[string]any{"Expense": expense})
}
