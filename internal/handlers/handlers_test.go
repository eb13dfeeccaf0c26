package handlers

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp wires the fake store into a mux mirroring the real routes.
type testApp struct {
	mux   *http.ServeMux
	store *fakeStore
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	fs := newFakeStore()
	tmpl := map[string]*template.Template{
		"login":    template.Must(template.New("login").Parse(`login page {{if .}}{{.Error}}{{end}}`)),
		"register": template.Must(template.New("register").Parse(`register page {{if .}}{{.Error}}{{end}}`)),
		"add":      template.Must(template.New("add").Parse(`add page {{if .}}{{.Error}}{{end}}`)),
		"list":     template.Must(template.New("list").Parse(`list page {{len .Expenses}} expenses`)),
		"edit":     template.Must(template.New("edit").Parse(`edit page {{.Expense.ID}}`)),
	}
	h := NewHandler(fs, nil, tmpl)

	mux := http.NewServeMux()
	mux.HandleFunc("/", h.HomeHandler)
	mux.HandleFunc("/login_page", h.LoginPage)
	mux.HandleFunc("/register_page", h.RegisterPage)
	mux.HandleFunc("/add_page", RequireAuth(h.AddPage))
	mux.HandleFunc("/list_page", RequireAuth(h.ListPage))
	mux.HandleFunc("/edit_page/", RequireAuth(h.EditPage))

	mux.HandleFunc("/register", h.RegisterHandler)
	mux.HandleFunc("/login", h.LoginHandler)
	mux.HandleFunc("/login/2fa", h.Verify2FALoginHandler)
	mux.HandleFunc("/logout", RequireAuth(h.LogoutHandler))
	mux.HandleFunc("/add", RequireAuth(h.AddExpenseHandler))
	mux.HandleFunc("/list", RequireAuth(h.ListExpensesHandler))
	mux.HandleFunc("/edit/", RequireAuth(h.EditExpenseHandler))
	mux.HandleFunc("/delete/", RequireAuth(h.DeleteExpenseHandler))
	mux.HandleFunc("/delete_html/", RequireAuth(h.DeleteExpenseFormHandler))
	mux.HandleFunc("/audit", RequireAuth(h.GetAuditHandler))
	mux.HandleFunc("/2fa/setup", RequireAuth(h.Setup2FAHandler))
	mux.HandleFunc("/2fa/enable", RequireAuth(h.Enable2FAHandler))
	mux.HandleFunc("/2fa/disable", RequireAuth(h.Disable2FAHandler))

	return &testApp{mux: mux, store: fs}
}

func (a *testApp) doJSON(t *testing.T, method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) doForm(t *testing.T, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) doGet(t *testing.T, path string, wantJSON bool, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if wantJSON {
		req.Header.Set("Accept", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

// register creates a user over the JSON API and returns the session cookies
// plus the new user id.
func (a *testApp) register(t *testing.T, username, password string) ([]*http.Cookie, int) {
	t.Helper()

	rec := a.doJSON(t, http.MethodPost, "/register", map[string]any{
		"username": username,
		"password": password,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	body := decodeBody(t, rec)
	userID := int(body["user_id"].(float64))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies, userID
}

// addExpense creates an expense for the session and returns its id.
func (a *testApp) addExpense(t *testing.T, cookies []*http.Cookie, amount float64, category, description string) int {
	t.Helper()

	rec := a.doJSON(t, http.MethodPost, "/add", map[string]any{
		"amount":      amount,
		"category":    category,
		"description": description,
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code)
	return int(decodeBody(t, rec)["expense_id"].(float64))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRequestFormat(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		accept      string
		want        Format
	}{
		{"json content type", "application/json", "", FormatJSON},
		{"json content type with charset", "application/json; charset=utf-8", "", FormatJSON},
		{"json accept", "", "application/json", FormatJSON},
		{"form post", "application/x-www-form-urlencoded", "", FormatBrowser},
		{"plain browser", "", "text/html", FormatBrowser},
		{"no headers", "", "", FormatBrowser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/login", nil)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			assert.Equal(t, tt.want, RequestFormat(req))
		})
	}
}

func TestDecodePayloadJSON(t *testing.T) {
	body := strings.NewReader(`{"amount": 100.5, "category": "Food", "count": 3}`)
	req := httptest.NewRequest(http.MethodPost, "/add", body)
	req.Header.Set("Content-Type", "application/json")

	fields, err := decodePayload(req, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "100.5", fields["amount"])
	assert.Equal(t, "Food", fields["category"])
	assert.Equal(t, "3", fields["count"])

	_, ok := fields["description"]
	assert.False(t, ok, "absent keys must stay absent")
}

func TestDecodePayloadDropsNulls(t *testing.T) {
	body := strings.NewReader(`{"amount": 10, "description": null}`)
	req := httptest.NewRequest(http.MethodPost, "/edit/1", body)
	req.Header.Set("Content-Type", "application/json")

	fields, err := decodePayload(req, FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "10", fields["amount"])
	_, ok := fields["description"]
	assert.False(t, ok, "a null field means not supplied")
}

func TestDecodePayloadForm(t *testing.T) {
	form := url.Values{"amount": {"42.00"}, "category": {"Transport"}}
	req := httptest.NewRequest(http.MethodPost, "/add", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	fields, err := decodePayload(req, FormatBrowser)
	require.NoError(t, err)

	assert.Equal(t, "42.00", fields["amount"])
	assert.Equal(t, "Transport", fields["category"])
}

func TestPathID(t *testing.T) {
	id, err := pathID("/edit/42", "/edit/")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = pathID("/edit/abc", "/edit/")
	assert.Error(t, err)
}
