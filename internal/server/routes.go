package server

import "net/http"

func (s *Server) registerRoutes() {
	r := s.router

	// Pages
	r.Get("/", s.handleHome)
	r.Get("/teacher", s.handleTeacher)
	r.Put("/teacher", s.handleSetTeacher)
	r.Get("/students", s.handleStudents)

	// Mutations and API
	r.Post("/counter", s.handleCounter)
	r.Get("/api/stats", s.handleStats)
	r.Get("/ws/stats", s.handleStatsStream)

	r.Get("/health", s.handleHealth)

	if s.metrics != nil && s.config.Metrics.Enabled {
		r.Method(http.MethodGet, s.config.Metrics.Path, s.metrics.Handler())
	}
}
