package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
)

// ThemeReader exposes the active presentation tag.
type ThemeReader interface {
	Current() domain.Theme
}

type AuthHandler struct {
	sessions ports.SessionService
	theme    ThemeReader
}

func NewAuthHandler(sessions ports.SessionService, theme ThemeReader) *AuthHandler {
	return &AuthHandler{sessions: sessions, theme: theme}
}

// SignIn authenticates with email and password.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signInRequest  true  "Credentials"
// @Success      200   {object}  signInResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/sign-in [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	out, err := h.sessions.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, signInResponse{
		Session:             out.Session,
		ConfirmationPending: out.ConfirmationPending,
	})
}

// SignUp creates an account with role and profile metadata.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signUpRequest  true  "Account details"
// @Success      201   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /auth/sign-up [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return err
	}
	err = h.sessions.SignUp(c.Request().Context(), ports.SignUpRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Location: req.Location,
		Role:     role,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, messageResponse{Message: "account created, check your email to confirm"})
}

// SignOut ends the session. It always succeeds locally.
//
// @Summary      Sign out
// @Tags         auth
// @Success      204
// @Router       /auth/sign-out [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	h.sessions.SignOut(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// State returns the current authenticated context.
//
// @Summary      Current auth state
// @Tags         auth
// @Produce      json
// @Success      200  {object}  stateResponse
// @Router       /auth/state [get]
func (h *AuthHandler) State(c echo.Context) error {
	return c.JSON(http.StatusOK, toStateResponse(h.sessions.State(), h.theme.Current()))
}
