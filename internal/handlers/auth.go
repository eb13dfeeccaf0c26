package handlers

import (
	"log"
	"net/http"

	"expense-diary/internal/models"
	"expense-diary/internal/store"

	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"
)

var (
	sessionStore = sessions.NewCookieStore([]byte("dev-secret-key-for-local-only"))
	sessionName  = "diary-session"
)

// dummyHash keeps login timing uniform when the username does not exist.
var dummyHash, _ = models.HashPassword("login-timing-pad")

// SetSessionSecret replaces the cookie signing key. Call before serving.
func SetSessionSecret(secret string) {
	if secret != "" {
		sessionStore = sessions.NewCookieStore([]byte(secret))
	}
}

// RegisterHandler creates an account, audits the registration and logs the
// new user straight in.
func (h *Handler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := RequestFormat(r)
	fields, err := decodePayload(r, format)
	if err != nil {
		h.failRegister(w, format, http.StatusBadRequest, "Invalid request")
		return
	}

	username := fields["username"]
	password := fields["password"]

	if username == "" || password == "" {
		h.failRegister(w, format, http.StatusBadRequest, "Username and password required")
		return
	}
	if len(password) < 6 {
		h.failRegister(w, format, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	user, err := h.Store.CreateUser(r.Context(), username, password)
	if err == store.ErrDuplicateUsername {
		h.failRegister(w, format, http.StatusBadRequest, "Username exists")
		return
	}
	if err != nil {
		log.Println("create user:", err)
		h.failRegister(w, format, http.StatusInternalServerError, "Server error")
		return
	}

	h.publishActivity(r.Context(), user.ID, models.ActionRegistration, 0)
	h.establishSession(w, r, user)

	if format == FormatJSON {
		respondJSON(w, http.StatusCreated, map[string]any{
			"message": "User registered",
			"user_id": user.ID,
		})
		return
	}
	http.Redirect(w, r, "/list_page", http.StatusSeeOther)
}

func (h *Handler) failRegister(w http.ResponseWriter, format Format, status int, message string) {
	if format == FormatJSON {
		jsonError(w, status, message)
		return
	}
	w.WriteHeader(status)
	h.RenderPage(w, "register", map[string]any{"Error": message})
}

// LoginHandler verifies credentials and establishes a session. Missing users
// and wrong passwords are indistinguishable to the caller.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := RequestFormat(r)
	fields, err := decodePayload(r, format)
	if err != nil {
		h.failLogin(w, format)
		return
	}

	user, err := h.Store.GetUserByUsername(r.Context(), fields["username"])
	if err == store.ErrNotFound {
		// burn a compare so a missing user costs the same as a bad password
		bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(fields["password"]))
		h.failLogin(w, format)
		return
	}
	if err != nil {
		log.Println("get user:", err)
		if format == FormatJSON {
			jsonError(w, http.StatusInternalServerError, "Server error")
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		h.RenderPage(w, "login", map[string]any{"Error": "Server error"})
		return
	}

	if !user.CheckPassword(fields["password"]) {
		h.failLogin(w, format)
		return
	}

	if user.TOTPEnabled {
		if format == FormatJSON {
			respondJSON(w, http.StatusOK, map[string]any{
				"requires_2fa": true,
				"user_id":      user.ID,
			})
			return
		}
		h.RenderPage(w, "login", map[string]any{"Error": "Two-factor code required, log in via the API"})
		return
	}

	h.completeLogin(w, r, user, format)
}

func (h *Handler) completeLogin(w http.ResponseWriter, r *http.Request, user models.User, format Format) {
	h.establishSession(w, r, user)

	if err := h.Store.InsertAudit(r.Context(), user.ID, models.ActionLogin, 0); err != nil {
		log.Println("audit login:", err)
	}
	h.publishActivity(r.Context(), user.ID, models.ActionLogin, 0)

	if format == FormatJSON {
		respondJSON(w, http.StatusOK, map[string]any{"message": "Logged in"})
		return
	}
	http.Redirect(w, r, "/list_page", http.StatusSeeOther)
}

func (h *Handler) failLogin(w http.ResponseWriter, format Format) {
	if format == FormatJSON {
		jsonError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	w.WriteHeader(http.StatusUnauthorized)
	h.RenderPage(w, "login", map[string]any{"Error": "Invalid username or password"})
}

// LogoutHandler audits the logout, drops the session and sends the browser
// back to the login page.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if userID, ok := CurrentUserID(r); ok {
		if err := h.Store.InsertAudit(r.Context(), userID, models.ActionLogout, 0); err != nil {
			log.Println("audit logout:", err)
		}
		h.publishActivity(r.Context(), userID, models.ActionLogout, 0)
	}

	session, _ := sessionStore.Get(r, sessionName)
	delete(session.Values, "user_id")
	delete(session.Values, "username")
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		log.Println("session save:", err)
	}

	http.Redirect(w, r, "/login_page", http.StatusSeeOther)
}

func (h *Handler) establishSession(w http.ResponseWriter, r *http.Request, user models.User) {
	session, _ := sessionStore.Get(r, sessionName)
	session.Values["user_id"] = user.ID
	session.Values["username"] = user.Username
	if err := session.Save(r, w); err != nil {
		log.Println("session save:", err)
	}
}

// RequireAuth gates ownership-sensitive handlers: 401 for JSON callers,
// redirect to the login page for browsers.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUserID(r); !ok {
			if RequestFormat(r) == FormatJSON {
				jsonError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			http.Redirect(w, r, "/login_page", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// CurrentUserID returns the authenticated user id from the session cookie.
func CurrentUserID(r *http.Request) (int, bool) {
	session, _ := sessionStore.Get(r, sessionName)
	userID, ok := session.Values["user_id"].(int)
	if !ok || userID == 0 {
		return 0, false
	}
	return userID, true
}
