package handler

import (
	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
)

type signInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type signInResponse struct {
	Session             *domain.Session `json:"session"`
	ConfirmationPending bool            `json:"confirmation_pending"`
}

type signUpRequest struct {
	Email    string  `json:"email"     validate:"required,email"`
	Password string  `json:"password"  validate:"required,min=6"`
	FullName string  `json:"full_name" validate:"required"`
	Location string  `json:"location"  validate:"required"`
	Role     string  `json:"role"      validate:"required,oneof=farmer buyer supplier"`
	Phone    *string `json:"phone"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type stateResponse struct {
	ports.AuthState
	Theme          domain.Theme `json:"theme"`
	DashboardRoute string       `json:"dashboard_route"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toStateResponse(st ports.AuthState, theme domain.Theme) stateResponse {
	return stateResponse{
		AuthState:      st,
		Theme:          theme,
		DashboardRoute: domain.DashboardRoute(st.Loading, st.User, st.Role),
	}
}
