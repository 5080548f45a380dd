package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/birimbahub/marketplace/internal/core/domain"
	"github.com/birimbahub/marketplace/internal/core/ports"
	"github.com/birimbahub/marketplace/internal/metrics"
)

// RoleResolver fetches the single role record of a user. Failures and
// missing rows leave the role unset; they are never returned.
type RoleResolver struct {
	repo ports.RoleRepository
	log  zerolog.Logger
}

func NewRoleResolver(repo ports.RoleRepository, log zerolog.Logger) *RoleResolver {
	return &RoleResolver{repo: repo, log: log}
}

// Resolve returns the user's role, or domain.RoleUnset.
func (r *RoleResolver) Resolve(ctx context.Context, userID string) domain.Role {
	raw, err := r.repo.FindRole(ctx, userID)
	if err != nil {
		metrics.ResolutionFailuresTotal.WithLabelValues("role").Inc()
		if errors.Is(err, domain.ErrNotFound) {
			r.log.Debug().Str("user_id", userID).Msg("no role record")
		} else {
			r.log.Warn().Err(err).Str("user_id", userID).Msg("role lookup failed")
		}
		return domain.RoleUnset
	}

	role, err := domain.ParseRole(raw)
	if err != nil {
		metrics.ResolutionFailuresTotal.WithLabelValues("role").Inc()
		r.log.Warn().Str("user_id", userID).Str("role", raw).Msg("unknown role value")
		return domain.RoleUnset
	}
	return role
}

// SelfProfileResolver fetches the owner's own profile row.
type SelfProfileResolver struct {
	repo ports.ProfileRepository
	log  zerolog.Logger
}

func NewSelfProfileResolver(repo ports.ProfileRepository, log zerolog.Logger) *SelfProfileResolver {
	return &SelfProfileResolver{repo: repo, log: log}
}

// Resolve returns the profile, or nil when it is missing or the lookup failed.
func (r *SelfProfileResolver) Resolve(ctx context.Context, userID string) *domain.SelfProfile {
	p, err := r.repo.FindSelfProfile(ctx, userID)
	if err != nil {
		metrics.ResolutionFailuresTotal.WithLabelValues("profile").Inc()
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Warn().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		}
		return nil
	}
	return p
}
