package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/birimbahub/marketplace/internal/core/domain"
)

type dashboardResponse struct {
	UserID string       `json:"user_id"`
	Role   domain.Role  `json:"role"`
	Theme  domain.Theme `json:"theme"`
	Route  string       `json:"route"`
}

type DashboardHandler struct {
	theme ThemeReader
}

func NewDashboardHandler(theme ThemeReader) *DashboardHandler {
	return &DashboardHandler{theme: theme}
}

// Get describes the dashboard of the signed-in role.
//
// @Summary      Role dashboard
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  dashboardResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /dashboard [get]
func (h *DashboardHandler) Get(c echo.Context) error {
	userID, role, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dashboardResponse{
		UserID: userID,
		Role:   role,
		Theme:  h.theme.Current(),
		Route:  domain.DashboardRoute(false, &domain.User{ID: userID}, role),
	})
}
