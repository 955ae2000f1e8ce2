package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/flechilla/statements/internal/core"
)

const maxUploadBytes = 10 << 20 // 10MB

func (s *Server) handleListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.store.ListBanks(r.Context())
	if err != nil {
		writeStoreError(w, r, "list banks", err)
		return
	}
	if banks == nil {
		banks = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"banks": banks})
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	bankName := strings.TrimSpace(r.PathValue("bankName"))
	if bankName == "" {
		writeError(w, http.StatusBadRequest, "bank name is required")
		return
	}

	cards, err := s.store.ListCards(r.Context(), bankName)
	if err != nil {
		writeStoreError(w, r, "list cards", err)
		return
	}
	if cards == nil {
		cards = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	statements, err := s.store.ListStatements(r.Context())
	if err != nil {
		writeStoreError(w, r, "list statements", err)
		return
	}
	if statements == nil {
		statements = []core.Statement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"statements": statements})
}

func (s *Server) handleCreateStatement(w http.ResponseWriter, r *http.Request) {
	var payload core.StatementPayload
	body := http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := payload.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateStatement(r.Context(), payload)
	if err != nil {
		writeStoreError(w, r, "create statement", err)
		return
	}

	if s.events != nil {
		if err := s.events.PublishStatementCreated(r.Context(), id, payload.BankName, payload.CardName, len(payload.Transactions)); err != nil {
			slog.WarnContext(r.Context(), "Failed to publish statement event", "error", err, "id", id)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleGetStatement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	st, err := s.store.GetStatement(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		writeError(w, http.StatusNotFound, "statement not found")
		return
	}
	if err != nil {
		writeStoreError(w, r, "get statement", err)
		return
	}

	total, err := s.store.SumAmount(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "sum statement amount", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"statement":   st,
		"totalAmount": total,
	})
}

func (s *Server) handleListStatementTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	txns, err := s.store.ListTransactions(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, "list transactions", err)
		return
	}
	if txns == nil {
		txns = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func (s *Server) handleSearchTransactions(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	txns, err := s.store.SearchTransactions(r.Context(), query)
	if err != nil {
		writeStoreError(w, r, "search transactions", err)
		return
	}
	if txns == nil {
		txns = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

// handleProcessStatement runs extraction on an uploaded document and
// returns the structured payload without persisting it. Extraction errors
// are passed through to the caller.
func (s *Server) handleProcessStatement(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		writeError(w, http.StatusInternalServerError, "statement extraction is not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	payload, err := s.extractor.Extract(r.Context(), data, header.Header.Get("Content-Type"))
	if err != nil {
		slog.ErrorContext(r.Context(), "Statement extraction failed", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, payload)
}

// parseID extracts the numeric {id} path value, answering 400 when it is
// not a number.
func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid statement id")
		return 0, false
	}
	return id, true
}
