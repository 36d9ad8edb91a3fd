package http

import (
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	accounts, err := s.accounts.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, "list accounts", err)
		return
	}
	NewJSONResponse().Body(accounts).Write(w)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	var in core.AccountInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, "create account", err)
		return
	}
	account, err := s.accounts.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, "create account", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(account).Write(w)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	account, err := s.accounts.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, "get account", err)
		return
	}
	NewJSONResponse().Body(account).Write(w)
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	var patch core.AccountPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, "update account", err)
		return
	}
	account, err := s.accounts.Update(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, "update account", err)
		return
	}
	NewJSONResponse().Body(account).Write(w)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := owner(w, r)
	if !ok {
		return
	}
	if err := s.accounts.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, "delete account", err)
		return
	}
	NewJSONResponse().Body(MessageBody{Message: "Account deleted successfully"}).Write(w)
}
