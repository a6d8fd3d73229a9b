package handlers

import (
	"net/http"
	"strings"

	"retouch/internal/credits"
	"retouch/internal/domain"
	"retouch/internal/middleware"
)

func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		userID = middleware.SessionID(r)
	}
	balance, err := a.Credits.Balance(r.Context(), userID)
	if err != nil {
		a.fail(w, "credits.balance", err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"userId":   userID,
		"balance":  balance,
		"enforced": a.Credits.Enforced(),
		"costs": map[string]int{
			string(credits.OpAnalyze):  a.Credits.Cost(credits.OpAnalyze),
			string(credits.OpGenerate): a.Credits.Cost(credits.OpGenerate),
			string(credits.OpEdit):     a.Credits.Cost(credits.OpEdit),
		},
	})
}

type consumeRequest struct {
	UserID    string `json:"userId"`
	Operation string `json:"operation"`
}

func (a *App) CreditsConsume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" || req.Operation == "" {
		a.fail(w, "credits.consume", domain.MissingParameters("userId and operation are required"))
		return
	}
	op, err := credits.ParseOperation(req.Operation)
	if err != nil {
		a.fail(w, "credits.consume", domain.BadRequest(err.Error()))
		return
	}
	res, err := a.Credits.Consume(r.Context(), req.UserID, op)
	if err != nil {
		a.fail(w, "credits.consume", err)
		return
	}
	if !res.OK {
		a.fail(w, "credits.consume", &domain.CreditError{Required: a.Credits.Cost(op), Available: res.Remaining})
		return
	}
	a.json(w, http.StatusOK, res)
}
