package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
	"github.com/birimbahub/marketplace/internal/core/service"
)

type ProfileHandler struct {
	profiles ports.RequesterProfileService
}

func NewProfileHandler(profiles ports.RequesterProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Get returns another user's profile as the backend filters it for the
// signed-in requester.
//
// @Summary      Requester view of a profile
// @Tags         profiles
// @Produce      json
// @Param        user_id  path      string  true  "Target user id"
// @Success      200      {object}  domain.RequesterProfile
// @Failure      400      {object}  errorResponse
// @Failure      401      {object}  errorResponse
// @Failure      404      {object}  errorResponse
// @Failure      502      {object}  errorResponse
// @Router       /profiles/{user_id} [get]
func (h *ProfileHandler) Get(c echo.Context) error {
	if _, _, err := ctxIdentity(c); err != nil {
		return err
	}

	q := service.NewRequesterQuery(h.profiles, c.Param("user_id"))
	if !q.Enabled() {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	q.Run(c.Request().Context())

	_, profile, err := q.Result()
	if err != nil {
		return err
	}
	if profile == nil {
		return domain.ErrNotFound
	}
	return c.JSON(http.StatusOK, profile)
}
