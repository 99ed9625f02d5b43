// Package student contains the HTTP handlers that read student records
// from the Supabase project and enforce the payment gate on them.
//
// HANDLER PATTERN — THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────
// Go's router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// To inject dependencies we use a factory function that accepts them and
// returns a function with exactly that signature:
//
//	router.HandleFunc("GET /api/students", student.GetList(directory))
//	//                                     ^^^^^^^^^^^^^^^^^^^^^^^^^^
//	//                      GetList(directory) runs ONCE at startup.
//	//                      The returned func runs on EVERY request.
package student

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aanand-mishra/students-paywall/internal/auth"
	"github.com/aanand-mishra/students-paywall/internal/storage"
	"github.com/aanand-mishra/students-paywall/internal/supabase"
	"github.com/aanand-mishra/students-paywall/internal/types"
	"github.com/aanand-mishra/students-paywall/internal/utils/response"
)

// Directory is where student records come from. supabase.Client is the
// production implementation.
type Directory interface {
	QueryStudents(ctx context.Context, f types.StudentFilter) ([]types.Student, int64, error)
	GetStudent(ctx context.Context, studentID string) (types.Student, error)
}

// Gate decides who may see a student's full record: admins always,
// everyone else after a verified payment for that student of at least
// MinAmount minor units.
type Gate struct {
	Ledger    storage.Storage
	Admins    auth.Allowlist
	MinAmount int64
}

// CanView reports whether user may see studentID unmasked.
func (g Gate) CanView(user types.User, studentID string) (bool, error) {
	if g.Admins.IsAdmin(user.Email) {
		return true, nil
	}
	if g.Ledger == nil {
		return false, nil
	}
	return g.Ledger.HasUnlock(user.Email, studentID, g.MinAmount)
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /api/students
// Returns one page of LOCKED student previews.
//
// Query parameters (all optional):
//
//	page=2            1-based page number (default 1)
//	size=25           25, 50 or 100 (default 50)
//	search=ram        case-insensitive match on name, father, class, roll, phone
//	class=BCA         exact class
//	semester=1st Year exact semester
//	missing_photo=1   only rows without a photo
//
// Success response (200 OK):
//
//	{ "students": [ { "student_id": "42", "name_preview": "Ram...", "photo_url": null, "locked": true } ],
//	  "total": 1234, "page": 2, "size": 25 }
//
// ─────────────────────────────────────────────────────────────────────────────
func GetList(directory Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := FilterFromQuery(r)
		slog.Info("listing students",
			slog.Int("page", filter.Page),
			slog.Int("size", filter.Size))

		students, total, err := directory.QueryStudents(r.Context(), filter)
		if err != nil {
			writeDirectoryError(w, err)
			return
		}

		previews := make([]types.StudentPreview, 0, len(students))
		for _, s := range students {
			previews = append(previews, s.Preview())
		}

		response.WriteJSON(w, http.StatusOK, types.StudentPage{
			Students: previews,
			Total:    total,
			Page:     filter.Page,
			Size:     filter.Size,
		})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetByID handles GET /api/students/{id}
// Returns the full record once the caller is allowed to see it.
//
// Error responses:
//
//	401 Unauthorized     — no valid access token
//	402 Payment Required — signed in, but has not paid for this student
//	404 Not Found        — no such student
//	500 Internal         — Supabase not configured, ledger failure
//	502 Bad Gateway      — Supabase call failed
//
// ─────────────────────────────────────────────────────────────────────────────
func GetByID(directory Directory, gate Gate, authn auth.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		user, err := auth.UserFromRequest(r, authn, "")
		if err != nil {
			response.WriteJSON(w, http.StatusUnauthorized,
				response.Message(auth.ErrUnauthenticated.Error()))
			return
		}

		slog.Info("getting a student",
			slog.String("id", id),
			slog.String("email", user.Email))

		allowed, err := gate.CanView(user, id)
		if err != nil {
			slog.Error("error checking unlock",
				slog.String("id", id),
				slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}
		if !allowed {
			response.WriteJSON(w, http.StatusPaymentRequired,
				response.Message("payment required to view this student"))
			return
		}

		student, err := directory.GetStudent(r.Context(), id)
		if err != nil {
			writeDirectoryError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, student)
	}
}

// FilterFromQuery reads the dashboard filters from the query string.
// Invalid numbers fall back to the defaults instead of failing.
func FilterFromQuery(r *http.Request) types.StudentFilter {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	page, size = supabase.NormalizePage(page, size)

	missingPhoto, _ := strconv.ParseBool(q.Get("missing_photo"))

	return types.StudentFilter{
		Search:       q.Get("search"),
		Class:        q.Get("class"),
		Semester:     q.Get("semester"),
		MissingPhoto: missingPhoto,
		Page:         page,
		Size:         size,
	}
}

func writeDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, supabase.ErrNotConfigured):
		slog.Error("supabase not configured")
		response.WriteJSON(w, http.StatusInternalServerError,
			response.Message("Supabase configuration missing or invalid"))
	case errors.Is(err, supabase.ErrStudentNotFound):
		response.WriteJSON(w, http.StatusNotFound, response.GeneralError(err))
	default:
		slog.Error("error reading students", slog.String("error", err.Error()))
		response.WriteJSON(w, http.StatusBadGateway, response.GeneralError(err))
	}
}
