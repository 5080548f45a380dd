// Package presentation holds the process-wide UI state the session core
// drives: the role theme tag and user-visible notifications.
package presentation

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/birimbahub/marketplace/internal/core/domain"
)

// Root is the single owner of the active theme tag.
type Root struct {
	mu    sync.RWMutex
	theme domain.Theme
	log   zerolog.Logger
}

func NewRoot(log zerolog.Logger) *Root {
	return &Root{log: log}
}

// Apply replaces the active tag. Applying the current tag again is a no-op.
func (r *Root) Apply(theme domain.Theme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.theme == theme {
		return
	}
	r.log.Debug().Str("from", string(r.theme)).Str("to", string(theme)).Msg("theme changed")
	r.theme = theme
}

// Current returns the active tag, or domain.ThemeNone.
func (r *Root) Current() domain.Theme {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.theme
}
