package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	"github.com/jackira01/scort-web-site-sub002/pkg/errs"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
	"github.com/jackira01/scort-web-site-sub002/pkg/ranking"
)

var ErrInvalidSurface = errs.Validation("invalid_surface", "surface must be home, filters or sponsored")

// listing ranks the visible active profiles eligible for a surface.
func (s *Server) listing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	surface := catalog.Surface(chi.URLParam(r, "surface"))
	if !surface.Valid() {
		s.fail(w, r, ErrInvalidSurface)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.fail(w, r, ErrInvalidLimit)
			return
		}
		limit = n
	}

	def, err := s.deps.Entitlements.DefaultPlan(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	projector, err := ranking.Load(ctx, s.deps.Catalog, def, ranking.WithTopTierLevel(s.topTier))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	profiles, err := s.deps.Profiles.List(ctx, profile.Query{VisibleOnly: true, ActiveOnly: true})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	entries := projector.Rank(profiles, surface, s.now().UTC())
	total := len(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	s.writeJSON(w, r, http.StatusOK, Envelope{
		Data: entries,
		Meta: map[string]any{"surface": surface, "total": total},
	})
}
