package http

import "net/http"

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	q, err := ParsePeriodQuery(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, "summary", err)
		return
	}
	summary, err := s.analytics.Summary(r.Context(), userID, q)
	if err != nil {
		writeError(w, r, "summary", err)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	q, err := ParseTrendQuery(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, "trends", err)
		return
	}
	points, err := s.analytics.Trends(r.Context(), userID, q)
	if err != nil {
		writeError(w, r, "trends", err)
		return
	}
	NewJSONResponse().Body(points).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	q, err := ParsePeriodQuery(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, "categories", err)
		return
	}
	stats, err := s.analytics.Categories(r.Context(), userID, q)
	if err != nil {
		writeError(w, r, "categories", err)
		return
	}
	NewJSONResponse().Body(stats).Write(w)
}

func (s *Server) handleAccountStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	stats, err := s.analytics.AccountStats(r.Context(), userID)
	if err != nil {
		writeError(w, r, "account stats", err)
		return
	}
	NewJSONResponse().Body(stats).Write(w)
}
