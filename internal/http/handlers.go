package http

import (
	"net/http"

	applog "kharcha/internal/log"
	"kharcha/internal/middleware/trace"
	"kharcha/internal/parser"
)

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	saved, err := s.svc.AddManual(r.Context(), in)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newTransaction(saved))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.svc.List(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newTransactions(txs))
}

// handleUpload imports a bank statement. Rows that cannot be imported are
// reported alongside the stored ones.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, err := uploadBody(w, r)
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	defer body.Close()

	res, err := s.svc.ImportCSV(r.Context(), body)
	if err != nil {
		s.writeError(w, r, applog.OpImport, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newImport(res))
}

func (s *Server) handleParseVoice(w http.ResponseWriter, r *http.Request) {
	var req parseVoiceRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}
	draft, err := s.svc.ParseVoice(sanitizeInput(req.Text))
	if err != nil {
		s.writeError(w, r, applog.OpParse, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newDraft(draft))
}

// handleSaveVoice stores a reviewed draft, or parses and stores the text in
// one step when no draft is sent.
func (s *Server) handleSaveVoice(w http.ResponseWriter, r *http.Request) {
	var req saveVoiceRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}

	if req.Draft == nil {
		text := sanitizeInput(req.Text)
		if text == "" {
			s.writeError(w, r, applog.OpCreate, fieldErrors{"text": "is required when no draft is sent"})
			return
		}
		draft, err := s.svc.ParseVoice(text)
		if err != nil {
			s.writeError(w, r, applog.OpParse, err)
			return
		}
		s.saveDraft(w, r, draft)
		return
	}

	draft, err := req.Draft.toDraft()
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	s.saveDraft(w, r, draft)
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request, draft parser.Draft) {
	saved, err := s.svc.SaveDraft(r.Context(), draft)
	if err != nil {
		s.writeError(w, r, applog.OpCreate, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newTransaction(saved))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Dashboard(r.Context())
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newDashboard(sum))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string][]string{"categories": s.svc.Categories()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reset(r.Context()); err != nil {
		s.writeError(w, r, applog.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeJSON(w, r, http.StatusTooManyRequests, errorResponse{
		Error:     errorBody{Code: "rate_limited", Message: "rate limit exceeded, please try again later"},
		RequestID: trace.RequestID(r.Context()),
	})
}
