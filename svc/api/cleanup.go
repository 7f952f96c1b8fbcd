package api

import "net/http"

func (s *Server) runCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Cleanup.RunNow(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, report)
}

func (s *Server) cleanupStatus(w http.ResponseWriter, r *http.Request) {
	s.ok(w, r, s.deps.Cleanup.Status())
}

func (s *Server) cleanupStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Cleanup.Stats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ok(w, r, stats)
}
