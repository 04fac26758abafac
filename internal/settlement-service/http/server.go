package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/radieske/scoreleague/internal/settlement-service/bets"
	"github.com/radieske/scoreleague/internal/settlement-service/dto"
	"github.com/radieske/scoreleague/internal/settlement-service/leagues"
	"github.com/radieske/scoreleague/internal/settlement-service/ledger"
	"github.com/radieske/scoreleague/internal/settlement-service/model"
	"github.com/radieske/scoreleague/internal/settlement-service/repo"
	"github.com/radieske/scoreleague/internal/settlement-service/settlement"
)

// LeaderboardCache é opcional; sem ele o ranking global é sempre recalculado
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, limit int, dst any) (bool, error)
	SetLeaderboard(ctx context.Context, limit int, v any, ttl time.Duration) error
}

const leaderboardTTL = 15 * time.Second

// API expõe os endpoints REST do serviço de liquidação
type API struct {
	Log          *zap.Logger
	Ledger       *ledger.Ledger
	Bets         *bets.Store
	Matches      repo.Matches
	Orchestrator *settlement.Orchestrator
	Leagues      *leagues.Service
	Cache        LeaderboardCache // opcional
	WS           http.HandlerFunc // opcional: hub WebSocket

	validate *validator.Validate
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	a.validate = validator.New(validator.WithRequiredStructEnabled())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/auth/login", a.login)

	r.Get("/v1/users/{id}", a.getUser)
	r.Get("/v1/users/{id}/bets", a.userBets)
	r.Get("/v1/users/{id}/leagues", a.userLeagues)

	r.Get("/v1/matches", a.listMatches)
	r.Post("/v1/matches", a.upsertMatch)
	r.Get("/v1/matches/{id}", a.getMatch)
	r.Post("/v1/matches/{id}/settle", a.settleMatch) // admin
	r.Post("/v1/matches/{id}/resume", a.resumeMatch) // admin

	r.Post("/v1/bets", a.placeBet)
	r.Get("/v1/bets/{id}", a.getBet)
	r.Post("/v1/bets/{id}/settle", a.settleBet) // admin

	r.Post("/v1/leagues", a.createLeague)
	r.Post("/v1/leagues/join", a.joinLeague)
	r.Get("/v1/leagues/{id}/leaderboard", a.leagueLeaderboard)
	r.Get("/v1/leaderboard", a.globalLeaderboard)

	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor traduz erros de domínio para status HTTP
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInsufficientFunds),
		errors.Is(err, model.ErrAlreadySettled),
		errors.Is(err, model.ErrMatchClosed),
		errors.Is(err, model.ErrLeagueFull),
		errors.Is(err, model.ErrAlreadyMember):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("requestId", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
}

// decode lê o JSON e roda as tags de validação
func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return false
	}
	return true
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !a.decode(w, r, &req) {
		return
	}
	u, created, err := a.Ledger.Login(r.Context(), req.Username)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, dto.LoginResponse{User: u, Created: created})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := a.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) userBets(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.Ledger.Get(r.Context(), id); err != nil {
		a.writeError(w, r, err)
		return
	}
	list, err := a.Bets.ByUser(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) userLeagues(w http.ResponseWriter, r *http.Request) {
	list, err := a.Leagues.ForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*model.League{}
	}
	writeJSON(w, http.StatusOK, list)
}

// listMatches aceita ?status=upcoming|live|finished
func (a *API) listMatches(w http.ResponseWriter, r *http.Request) {
	list, err := a.Matches.ListMatches(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if st := model.MatchStatus(r.URL.Query().Get("status")); st != "" {
		filtered := list[:0]
		for _, m := range list {
			if m.Status == st {
				filtered = append(filtered, m)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) upsertMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.UpsertMatchRequest
	if !a.decode(w, r, &req) {
		return
	}
	m := &model.Match{
		ID:       req.ID,
		HomeTeam: req.HomeTeam,
		AwayTeam: req.AwayTeam,
		League:   req.League,
		Kickoff:  req.Kickoff,
		Status:   model.MatchStatus(req.Status),
	}
	if m.Status == "" {
		m.Status = model.MatchUpcoming
	}
	if m.Kickoff.IsZero() {
		m.Kickoff = time.Now().UTC()
	}
	if err := a.Matches.UpsertMatch(r.Context(), m); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := a.Matches.GetMatch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) settleMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleMatchRequest
	if !a.decode(w, r, &req) {
		return
	}
	sum, err := a.Orchestrator.SettleMatch(r.Context(), chi.URLParam(r, "id"), *req.HomeGoals, *req.AwayGoals)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// resumeMatch liquida apostas que ficaram pending depois de um settle interrompido
func (a *API) resumeMatch(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleMatchRequest
	if !a.decode(w, r, &req) {
		return
	}
	sum, err := a.Orchestrator.ResumeMatch(r.Context(), chi.URLParam(r, "id"), *req.HomeGoals, *req.AwayGoals)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if !a.decode(w, r, &req) {
		return
	}
	legs := make([]model.Leg, 0, len(req.Legs))
	for _, l := range req.Legs {
		legs = append(legs, model.Leg{MatchID: l.MatchID, Market: l.Market, Selection: l.Selection, Odds: l.Odds})
	}
	b, u, err := a.Orchestrator.PlaceBet(r.Context(), req.UserID, legs, req.Stake, req.LeagueIDs)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PlaceBetResponse{Bet: b, User: u})
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	b, err := a.Bets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) settleBet(w http.ResponseWriter, r *http.Request) {
	var req dto.SettleBetRequest
	if !a.decode(w, r, &req) {
		return
	}
	b, err := a.Orchestrator.SettleBet(r.Context(), chi.URLParam(r, "id"), model.BetStatus(req.Result))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (a *API) createLeague(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateLeagueRequest
	if !a.decode(w, r, &req) {
		return
	}
	l, err := a.Leagues.Create(r.Context(), req.CreatorID, req.Name, req.Description)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (a *API) joinLeague(w http.ResponseWriter, r *http.Request) {
	var req dto.JoinLeagueRequest
	if !a.decode(w, r, &req) {
		return
	}
	l, err := a.Leagues.Join(r.Context(), req.InviteCode, req.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (a *API) leagueLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := a.Leagues.Leaderboard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// globalLeaderboard aceita ?limit=N (padrão 50), com cache curto no Redis
func (a *API) globalLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	if a.Cache != nil {
		var cached []leagues.Standing
		if ok, err := a.Cache.GetLeaderboard(r.Context(), limit, &cached); err == nil && ok {
			writeJSON(w, http.StatusOK, cached)
			return
		} else if err != nil {
			a.Log.Warn("leaderboard cache get", zap.Error(err))
		}
	}

	board, err := a.Leagues.Global(r.Context(), limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if a.Cache != nil {
		if err := a.Cache.SetLeaderboard(r.Context(), limit, board, leaderboardTTL); err != nil {
			a.Log.Warn("leaderboard cache set", zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, board)
}
