package main

import (
	"context"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"expense-diary/internal/handlers"
	"expense-diary/internal/store"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	// PostgreSQL Configuration
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pgStore, err := store.NewPostgresStore(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	defer pgStore.Close()

	// Run database migrations
	ctx := context.Background()
	if err := pgStore.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Optional Redis-backed activity feed
	var feed store.ActivityFeed
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		redisDB := 0
		if v := os.Getenv("REDIS_DB"); v != "" {
			if db, err := strconv.Atoi(v); err == nil {
				redisDB = db
			}
		}
		feed = store.NewRedisActivityFeed(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		})
	} else {
		log.Println("REDIS_ADDR not set, activity feed disabled")
	}

	handlers.SetSessionSecret(os.Getenv("SESSION_SECRET"))

	// Parse templates
	tmpl := make(map[string]*template.Template)
	pages := map[string]string{
		"login":    filepath.Join("web", "templates", "login.html"),
		"register": filepath.Join("web", "templates", "register.html"),
		"add":      filepath.Join("web", "templates", "add.html"),
		"list":     filepath.Join("web", "templates", "list.html"),
		"edit":     filepath.Join("web", "templates", "edit.html"),
	}
	for name, path := range pages {
		t, err := template.ParseFiles(path)
		if err != nil {
			log.Printf("Failed to parse template %s: %v", name, err)
		} else {
			tmpl[name] = t
		}
	}

	h := handlers.NewHandler(pgStore, feed, tmpl)

	// Pages
	http.HandleFunc("/", h.HomeHandler)
	http.HandleFunc("/login_page", h.LoginPage)
	http.HandleFunc("/register_page", h.RegisterPage)
	http.HandleFunc("/add_page", handlers.RequireAuth(h.AddPage))
	http.HandleFunc("/list_page", handlers.RequireAuth(h.ListPage))
	http.HandleFunc("/edit_page/", handlers.RequireAuth(h.EditPage))

	// API endpoints (JSON or form bodies)
	http.HandleFunc("/register", handlers.Instrument("/register", h.RegisterHandler))
	http.HandleFunc("/login", handlers.Instrument("/login", h.LoginHandler))
	http.HandleFunc("/login/2fa", handlers.Instrument("/login/2fa", h.Verify2FALoginHandler))
	http.HandleFunc("/logout", handlers.RequireAuth(h.LogoutHandler))
	http.HandleFunc("/add", handlers.Instrument("/add", handlers.RequireAuth(h.AddExpenseHandler)))
	http.HandleFunc("/list", handlers.Instrument("/list", handlers.RequireAuth(h.ListExpensesHandler)))
	http.HandleFunc("/edit/", handlers.Instrument("/edit", handlers.RequireAuth(h.EditExpenseHandler)))
	http.HandleFunc("/delete/", handlers.Instrument("/delete", handlers.RequireAuth(h.DeleteExpenseHandler)))
	http.HandleFunc("/delete_html/", handlers.RequireAuth(h.DeleteExpenseFormHandler))
	http.HandleFunc("/audit", handlers.Instrument("/audit", handlers.RequireAuth(h.GetAuditHandler)))

	// Activity feed (Redis)
	http.HandleFunc("/activity", handlers.RequireAuth(h.RecentActivityHandler))
	http.HandleFunc("/events", handlers.RequireAuth(h.EventsHandler))

	// Two-factor management
	http.HandleFunc("/2fa/setup", handlers.RequireAuth(h.Setup2FAHandler))
	http.HandleFunc("/2fa/enable", handlers.RequireAuth(h.Enable2FAHandler))
	http.HandleFunc("/2fa/disable", handlers.RequireAuth(h.Disable2FAHandler))

	http.Handle("/metrics", promhttp.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Listening on :" + port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}
