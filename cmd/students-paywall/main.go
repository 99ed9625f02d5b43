// main is the entry point of the students paywall backend.
//
// STARTUP SEQUENCE:
//  1. Load configuration (.env, YAML file, environment overrides)
//  2. Initialise the logger
//  3. Open the SQLite unlock ledger
//  4. Build the Razorpay, Supabase and auth clients
//  5. Register all HTTP routes and start the server
//  6. Block until an OS signal arrives, then shut down gracefully
//
// RUNNING THE SERVER:
//
//	go run ./cmd/students-paywall --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/students-paywall
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aanand-mishra/students-paywall/internal/auth"
	"github.com/aanand-mishra/students-paywall/internal/config"
	"github.com/aanand-mishra/students-paywall/internal/http/handlers/account"
	"github.com/aanand-mishra/students-paywall/internal/http/handlers/student"
	"github.com/aanand-mishra/students-paywall/internal/http/handlers/unlock"
	"github.com/aanand-mishra/students-paywall/internal/http/middleware"
	"github.com/aanand-mishra/students-paywall/internal/payment"
	"github.com/aanand-mishra/students-paywall/internal/payment/razorpay"
	"github.com/aanand-mishra/students-paywall/internal/storage/sqlite"
	"github.com/aanand-mishra/students-paywall/internal/supabase"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// Handlers log through the package-level slog functions, so the
	// configured logger becomes the default.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting students-paywall",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	// ── 3. Initialise the Ledger ──────────────────────────────────────────
	ledger, err := sqlite.New(cfg.StoragePath)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer ledger.Close()

	log.Info("storage initialised",
		slog.String("path", cfg.StoragePath))

	// ── 4. External Services ──────────────────────────────────────────────
	// Missing keys do not stop the server: the affected endpoints answer
	// with a "not configured" error instead.
	gateway := razorpay.New(cfg.Razorpay)
	signer := payment.NewSigner(cfg.Razorpay.KeySecret)
	directory := supabase.New(cfg.Supabase)
	authn := newAuthenticator(cfg.Supabase, directory)
	admins := auth.NewAllowlist(cfg.AdminList())

	// An unlock only counts when the order paid at least the list price.
	gate := student.Gate{
		Ledger:    ledger,
		Admins:    admins,
		MinAmount: razorpay.ToMinorUnits(unlockPrice(cfg.Unlock.DefaultAmount)),
	}

	if cfg.Razorpay.KeyID == "" || cfg.Razorpay.KeySecret == "" {
		log.Warn("razorpay keys not configured")
	}
	if !directory.Configured() {
		log.Warn("supabase not configured")
	}
	log.Info("admin allowlist loaded", slog.Int("admins", len(admins)))

	// ── 5. Register HTTP Routes ───────────────────────────────────────────
	// Route table:
	//   POST /api/create-order     → open a Razorpay order for one student
	//   POST /api/verify-payment   → check the checkout signature, record the unlock
	//   GET  /api/students         → page of locked previews
	//   GET  /api/students/{id}    → full record (admin or paid)
	//   GET  /api/unlocks          → the caller's unlocked students
	//   GET  /api/me               → the caller and their admin flag
	router := http.NewServeMux()

	router.HandleFunc("POST /api/create-order", unlock.CreateOrder(gateway, ledger, authn, cfg.Unlock.DefaultAmount))
	router.HandleFunc("POST /api/verify-payment", unlock.VerifyPayment(signer, ledger, authn))
	router.HandleFunc("GET /api/students", student.GetList(directory))
	router.HandleFunc("GET /api/students/{id}", student.GetByID(directory, gate, authn))
	router.HandleFunc("GET /api/unlocks", account.GetUnlocks(ledger, authn))
	router.HandleFunc("GET /api/me", account.GetMe(authn, admins))

	server := &http.Server{
		Addr:    cfg.HTTPServer.Addr,
		Handler: middleware.Logger(log, middleware.Recover(log, router)),

		// Order creation waits on Razorpay (15s client timeout).
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		return
	}

	log.Info("server stopped gracefully")
}

// unlockPrice is the configured price, or unlock.FallbackAmount when the
// config has none.
func unlockPrice(amount float64) float64 {
	if amount <= 0 {
		return unlock.FallbackAmount
	}
	return amount
}

// newAuthenticator validates tokens locally when the project's JWT secret
// is known, and asks Supabase Auth otherwise.
func newAuthenticator(cfg config.Supabase, client *supabase.Client) auth.Authenticator {
	if cfg.JWTSecret != "" {
		return auth.NewJWTAuthenticator(cfg.JWTSecret)
	}
	return auth.RemoteAuthenticator{Lookup: client}
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default:
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
