package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
)

// StateSource is the part of the session service the middleware reads.
type StateSource interface {
	State() ports.AuthState
}

// RequireSession rejects requests while no session is established and
// injects the identity and resolved role into context.
func RequireSession(sessions StateSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			st := sessions.State()
			if st.SessionState != domain.SessionEstablished || st.User == nil || st.User.ID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "no active session")
			}

			c.Set("user_id", st.User.ID)
			c.Set("role", st.Role.String())

			return next(c)
		}
	}
}
