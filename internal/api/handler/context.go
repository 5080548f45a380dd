package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/birimbahub/marketplace/internal/core/domain"
)

// ctxIdentity extracts the identity injected by the RequireSession
// middleware. A missing user id means the middleware did not run.
func ctxIdentity(c echo.Context) (userID string, role domain.Role, err error) {
	userID, _ = c.Get("user_id").(string)
	if userID == "" {
		return "", domain.RoleUnset, echo.NewHTTPError(http.StatusUnauthorized, "missing session identity")
	}
	r, _ := c.Get("role").(string)
	return userID, domain.Role(r), nil
}
