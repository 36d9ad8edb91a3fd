package http

import (
	"net/http"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

// destinationWarning is sent when a lenient-mode transfer was recorded
// without crediting its destination.
const destinationWarning = "transfer recorded without crediting the destination account"

// transactionResponse is a transaction plus an optional degradation warning.
type transactionResponse struct {
	core.TransactionView
	Warning string `json:"warning,omitempty"`
}

func mutationBody(res services.MutationResult) transactionResponse {
	body := transactionResponse{TransactionView: res.Transaction}
	if res.Transaction.Type == core.Transfer && !res.DestinationApplied {
		body.Warning = destinationWarning
	}
	return body
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	filter, err := ParseListFilter(r.URL.Query(), s.loc)
	if err != nil {
		writeError(w, r, "list transactions", err)
		return
	}
	txs, err := s.ledger.List(r.Context(), userID, filter)
	if err != nil {
		writeError(w, r, "list transactions", err)
		return
	}
	NewJSONResponse().Body(txs).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	var in core.TransactionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, "create transaction", err)
		return
	}
	res, err := s.ledger.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, "create transaction", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(mutationBody(res)).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	view, err := s.ledger.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, "get transaction", err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	var patch core.TransactionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, "update transaction", err)
		return
	}
	res, err := s.ledger.Update(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, "update transaction", err)
		return
	}
	NewJSONResponse().Body(mutationBody(res)).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, "delete transaction", err)
		return
	}
	NewJSONResponse().Body(MessageBody{Message: "Transaction deleted successfully"}).Write(w)
}
