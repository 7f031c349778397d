package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/f1-wager-engine/internal/ledger"
	"github.com/radieske/f1-wager-engine/internal/race"
	"github.com/radieske/f1-wager-engine/internal/wager"
	"github.com/radieske/f1-wager-engine/internal/wager/http/dto"
)

// Identidade vem do proxy de autenticação; este serviço confia no header.
const userHeader = "X-User-ID"

const adminHeader = "X-Admin-Token"

const historyLimit = 50

// Service define as operações de aposta usadas pelos handlers.
type Service interface {
	PlaceParlay(ctx context.Context, userID string, in wager.PlaceParlayInput) (wager.Wager, error)
	PlaceHeadToHead(ctx context.Context, userID string, in wager.PlaceHeadToHeadInput) (wager.Wager, error)
	Cancel(ctx context.Context, userID, wagerID string) (wager.Wager, error)
	List(ctx context.Context, userID, raceID string) ([]wager.Wager, error)
	LiveOdds(ctx context.Context, raceID string, driverNumber, seasonRank int) float64
}

// Ledger define as operações de saldo expostas pela API.
type Ledger interface {
	Balance(ctx context.Context, userID string) (ledger.Account, error)
	Credit(ctx context.Context, userID string, amount int64, reason string) (int64, error)
	History(ctx context.Context, userID string, limit int) ([]ledger.Entry, error)
}

// Server expõe a API HTTP do wager-service.
type Server struct {
	log        *zap.Logger
	svc        Service
	ledger     Ledger
	adminToken string
}

func NewServer(log *zap.Logger, svc Service, l Ledger, adminToken string) *Server {
	return &Server{log: log, svc: svc, ledger: l, adminToken: adminToken}
}

// Router retorna o mux HTTP com as rotas da API de apostas.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/wagers/parlay", s.placeParlay) // POST
	mux.HandleFunc("/wagers/h2h", s.placeH2H)       // POST
	mux.HandleFunc("/wagers/", s.wagerByID)         // POST /wagers/{id}/cancel
	mux.HandleFunc("/wagers", s.listWagers)         // GET ?raceId=...
	mux.HandleFunc("/balance", s.getBalance)        // GET
	mux.HandleFunc("/balance/history", s.history)   // GET
	mux.HandleFunc("/odds/live", s.liveOdds)        // GET ?raceId=&driver=&rank=
	mux.HandleFunc("/admin/grant", s.grant)         // POST, exige token de admin
	return mux
}

func (s *Server) placeParlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req dto.PlaceParlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	in := wager.PlaceParlayInput{RaceID: req.RaceID}
	for _, l := range req.Legs {
		in.Legs = append(in.Legs, wager.ParlayLegInput{
			Position:     l.Position,
			DriverNumber: l.DriverNumber,
			DriverName:   l.DriverName,
			SeasonRank:   l.SeasonRank,
			Stake:        l.Stake,
			ClientOdds:   l.Odds,
		})
	}

	wg, err := s.svc.PlaceParlay(r.Context(), userID, in)
	if err != nil {
		s.writeWagerError(w, err)
		return
	}
	wagersPlaced.WithLabelValues(string(wager.KindParlay)).Inc()

	s.writeWager(w, r, wg, true)
}

func (s *Server) placeH2H(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}

	var req dto.PlaceHeadToHeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	wg, err := s.svc.PlaceHeadToHead(r.Context(), userID, wager.PlaceHeadToHeadInput{
		RaceID:          req.RaceID,
		DriverA:         wager.DriverInput{Number: req.DriverA.Number, Name: req.DriverA.Name, Team: req.DriverA.Team, SeasonRank: req.DriverA.SeasonRank},
		DriverB:         wager.DriverInput{Number: req.DriverB.Number, Name: req.DriverB.Name, Team: req.DriverB.Team, SeasonRank: req.DriverB.SeasonRank},
		PredictedWinner: req.PredictedWinner,
		Stake:           req.Stake,
		ClientOdds:      req.Odds,
	})
	if err != nil {
		s.writeWagerError(w, err)
		return
	}
	wagersPlaced.WithLabelValues(string(wager.KindH2H)).Inc()

	s.writeWager(w, r, wg, false)
}

// wagerByID trata /wagers/{id}/cancel e GET /wagers/{id}.
func (s *Server) wagerByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/wagers/")
	if r.Method == http.MethodPost && strings.HasSuffix(rest, "/cancel") {
		wagerID := strings.TrimSuffix(rest, "/cancel")
		if wagerID == "" {
			writeError(w, http.StatusBadRequest, "wagerId required")
			return
		}
		wg, err := s.svc.Cancel(r.Context(), userID, wagerID)
		if err != nil {
			s.writeWagerError(w, err)
			return
		}
		wagersCancelled.Inc()
		writeJSON(w, dto.CancelResponse{WagerID: wg.ID, Status: "CANCELLED", RefundAmount: wg.StakeTotal})
		return
	}

	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}

	list, err := s.svc.List(r.Context(), userID, r.URL.Query().Get("raceId"))
	if err != nil {
		s.writeWagerError(w, err)
		return
	}

	out := make([]dto.WagerResponse, 0, len(list))
	for _, wg := range list {
		out = append(out, toWagerResponse(wg, nil))
	}
	writeJSON(w, out)
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}

	acc, err := s.ledger.Balance(r.Context(), userID)
	if err != nil {
		s.log.Error("balance lookup failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, dto.BalanceResponse{
		UserID:         acc.UserID,
		BalanceTokens:  acc.BalanceTokens,
		LifetimeEarned: acc.LifetimeEarned,
	})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := s.identity(w, r)
	if !ok {
		return
	}

	entries, err := s.ledger.History(r.Context(), userID, historyLimit)
	if err != nil {
		s.log.Error("ledger history failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]dto.LedgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, dto.LedgerEntryResponse{
			ID:           e.ID,
			AmountTokens: e.AmountTokens,
			Reason:       e.Reason,
			CreatedAt:    e.CreatedAt,
		})
	}
	writeJSON(w, out)
}

func (s *Server) liveOdds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	raceID := r.URL.Query().Get("raceId")
	driver, _ := strconv.Atoi(r.URL.Query().Get("driver"))
	rank, _ := strconv.Atoi(r.URL.Query().Get("rank"))
	if raceID == "" || driver <= 0 {
		writeError(w, http.StatusBadRequest, "raceId and driver required")
		return
	}

	writeJSON(w, dto.LiveOddsResponse{
		RaceID:       raceID,
		DriverNumber: driver,
		Odds:         s.svc.LiveOdds(r.Context(), raceID, driver, rank),
	})
}

// grant credita tokens fora do fluxo de apostas (recompensas, ajustes).
// Protegido por token estático de admin, fora da identidade normal.
func (s *Server) grant(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.adminToken == "" || r.Header.Get(adminHeader) != s.adminToken {
		writeError(w, http.StatusUnauthorized, "admin token required")
		return
	}

	var req dto.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.UserID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "Token grant"
	}

	balance, err := s.ledger.Credit(r.Context(), req.UserID, req.Amount, reason)
	if err != nil {
		s.log.Error("token grant failed", zap.String("user_id", req.UserID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, dto.BalanceResponse{UserID: req.UserID, BalanceTokens: balance})
}

func (s *Server) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userHeader)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing "+userHeader)
		return "", false
	}
	return userID, true
}

func (s *Server) writeWager(w http.ResponseWriter, r *http.Request, wg wager.Wager, withLive bool) {
	var live map[int]float64
	if withLive {
		live = make(map[int]float64, len(wg.Legs))
		for _, l := range wg.Legs {
			live[l.DriverNumber] = s.svc.LiveOdds(r.Context(), wg.RaceID, l.DriverNumber, l.RankAtBet)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(toWagerResponse(wg, live))
}

func toWagerResponse(wg wager.Wager, live map[int]float64) dto.WagerResponse {
	resp := dto.WagerResponse{
		WagerID:         wg.ID,
		RaceID:          wg.RaceID,
		RaceName:        wg.RaceName,
		Kind:            string(wg.Kind),
		Status:          string(wg.Status),
		StakeTotal:      wg.StakeTotal,
		PotentialPayout: wg.PotentialPayout,
		Payout:          wg.Payout,
		VoidReason:      wg.VoidReason,
		CreatedAt:       wg.CreatedAt,
		SettledAt:       wg.SettledAt,
	}
	if wg.Kind == wager.KindH2H {
		resp.Odds = wg.Odds
		resp.PredictedWinner = wg.PredictedWinner
	}
	for _, l := range wg.Legs {
		resp.Legs = append(resp.Legs, dto.LegResponse{
			Position:     l.Position,
			DriverNumber: l.DriverNumber,
			DriverName:   l.DriverName,
			Stake:        l.Stake,
			Odds:         l.Odds,
			LiveOdds:     live[l.DriverNumber],
			Won:          l.Won,
		})
	}
	return resp
}

// writeWagerError mapeia a taxonomia de erros do domínio para status HTTP.
func (s *Server) writeWagerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wager.ErrValidation):
		wagersRejected.WithLabelValues("validation").Inc()
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, race.ErrNotFound), errors.Is(err, wager.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientBalance):
		wagersRejected.WithLabelValues("insufficient_balance").Inc()
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, wager.ErrBettingClosed):
		wagersRejected.WithLabelValues("betting_closed").Inc()
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wager.ErrDuplicateWager):
		wagersRejected.WithLabelValues("duplicate").Inc()
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wager.ErrAlreadySettled), errors.Is(err, wager.ErrCancelWindowExpired):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wager.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		s.log.Error("wager operation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: msg})
}
