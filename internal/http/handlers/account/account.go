// Package account serves what the dashboard needs to know about the
// signed-in user: who they are and which students they have unlocked.
package account

import (
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/students-paywall/internal/auth"
	"github.com/aanand-mishra/students-paywall/internal/storage"
	"github.com/aanand-mishra/students-paywall/internal/types"
	"github.com/aanand-mishra/students-paywall/internal/utils/response"
)

// Me is the body of GET /api/me.
type Me struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Admin bool   `json:"admin"`
}

// GetMe handles GET /api/me.
//
//	200 { "id": "...", "email": "ana@example.com", "admin": false }
//	401 { "error": "authentication required" }
func GetMe(authn auth.Authenticator, admins auth.Allowlist) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r, authn)
		if !ok {
			return
		}

		response.WriteJSON(w, http.StatusOK, Me{
			ID:    user.ID,
			Email: user.Email,
			Admin: admins.IsAdmin(user.Email),
		})
	}
}

// GetUnlocks handles GET /api/unlocks and lists the caller's verified
// payments, newest first.
//
//	200 { "unlocks": [ { "order_id": "...", "student_id": "42", ... } ] }
func GetUnlocks(ledger storage.Storage, authn auth.Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := requireUser(w, r, authn)
		if !ok {
			return
		}

		unlocks, err := ledger.ListUnlocks(user.Email)
		if err != nil {
			slog.Error("error listing unlocks",
				slog.String("email", user.Email),
				slog.String("error", err.Error()))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}
		if unlocks == nil {
			unlocks = []types.Unlock{}
		}

		response.WriteJSON(w, http.StatusOK, map[string][]types.Unlock{"unlocks": unlocks})
	}
}

func requireUser(w http.ResponseWriter, r *http.Request, authn auth.Authenticator) (types.User, bool) {
	user, err := auth.UserFromRequest(r, authn, "")
	if err != nil {
		response.WriteJSON(w, http.StatusUnauthorized,
			response.Message(auth.ErrUnauthenticated.Error()))
		return types.User{}, false
	}
	return user, true
}
