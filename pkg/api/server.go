// Package api exposes the settlement core over REST plus a WebSocket event
// feed. All entry points are programmatic calls authenticated by caller
// identity; signatures on fills are verified by the engine itself.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/openlay/openlay/pkg/engine"
	"github.com/openlay/openlay/pkg/vault"
)

type Server struct {
	engine *engine.Engine
	vault  *vault.Vault
	router *mux.Router
	hub    *Hub
	log    *zap.Logger
}

func NewServer(eng *engine.Engine, v *vault.Vault, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		engine: eng,
		vault:  v,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	eng.SetEventSink(s.hub)
	s.setupRoutes()
	return s
}

// Hub returns the event hub so callers can wire additional sinks or tests.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requestLogger)

	api.HandleFunc("/orders/{digest}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{digest}/fills/{layer}", s.handleGetFill).Methods("GET")
	api.HandleFunc("/subjects/{address}/orders", s.handleGetOrdersBySubject).Methods("GET")
	api.HandleFunc("/balances/{token}/{owner}", s.handleGetBalance).Methods("GET")

	api.HandleFunc("/fills", s.handleSubmitFill).Methods("POST")
	api.HandleFunc("/cancels", s.handleCancel).Methods("POST")
	api.HandleFunc("/claims", s.handleClaim).Methods("POST")

	api.HandleFunc("/deposits", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdrawals", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/approvals", s.handleApprove).Methods("POST")

	s.router.HandleFunc("/ws", s.hub.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP on addr. Blocks.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	})

	s.log.Info("api server starting", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// requestLogger tags each request with a generated id and logs its timing.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := uuid.NewString()
		next.ServeHTTP(w, r)
		s.log.Info("http request",
			zap.String("id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	digest, err := parseDigest(mux.Vars(r)["digest"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	details, err := s.engine.GetOrderDetails(digest)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, detailsResponse(digest, details))
}

func (s *Server) handleGetFill(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	digest, err := parseDigest(vars["digest"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	layer := common.HexToAddress(vars["layer"])
	filled := s.engine.GetFillAmount(digest, layer)
	writeJSON(w, http.StatusOK, FillAmountResponse{
		Digest: digest.Hex(),
		Layer:  layer.Hex(),
		Filled: filled.String(),
	})
}

func (s *Server) handleGetOrdersBySubject(w http.ResponseWriter, r *http.Request) {
	subject := common.HexToAddress(mux.Vars(r)["address"])
	digests := s.engine.GetOrdersBySubject(subject)
	out := make([]string, len(digests))
	for i, d := range digests {
		out[i] = d.Hex()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	token := common.HexToAddress(vars["token"])
	owner := common.HexToAddress(vars["owner"])
	writeJSON(w, http.StatusOK, BalanceResponse{
		Token:   token.Hex(),
		Owner:   owner.Hex(),
		Balance: s.vault.BalanceOf(token, owner).String(),
	})
}

func (s *Server) handleSubmitFill(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	order, err := req.Order.ToOrder()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fill, err := parseAmount("fillAmount", req.FillAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	digest, err := s.engine.SubmitFill(common.HexToAddress(req.Caller), order, req.Nonce, fill, sig)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, DigestResponse{Digest: digest.Hex()})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller := common.HexToAddress(req.Caller)

	if req.Order != nil {
		order, err := req.Order.ToOrder()
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		digest, err := s.engine.CancelOrder(caller, order, req.Nonce)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, DigestResponse{Digest: digest.Hex()})
		return
	}

	digest, err := parseDigest(req.Digest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Cancel(caller, digest); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, DigestResponse{Digest: digest.Hex()})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	digest, err := parseDigest(req.Digest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.engine.Claim(common.HexToAddress(req.Caller), digest); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, DigestResponse{Digest: digest.Hex()})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller := common.HexToAddress(req.Caller)
	token := common.HexToAddress(req.Token)
	if err := s.vault.Deposit(caller, token, amount, value); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Token:   token.Hex(),
		Owner:   caller.Hex(),
		Balance: s.vault.BalanceOf(token, caller).String(),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	caller := common.HexToAddress(req.Caller)
	token := common.HexToAddress(req.Token)
	if err := s.vault.Withdraw(caller, token, amount); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Token:   token.Hex(),
		Owner:   caller.Hex(),
		Balance: s.vault.BalanceOf(token, caller).String(),
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.vault.Approve(common.HexToAddress(req.Caller), common.HexToAddress(req.Agent)); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

func parseDigest(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, errors.New("digest must be 32 bytes")
	}
	return common.BytesToHash(b), nil
}

// statusFor maps engine and vault errors to HTTP statuses: conflicts 409,
// unknown orders 404, authorization 403, everything else 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownOrder):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnauthorized),
		errors.Is(err, engine.ErrUnauthorizedLayer),
		errors.Is(err, engine.ErrSelfFill),
		errors.Is(err, vault.ErrNotOwner),
		errors.Is(err, vault.ErrNotSpender),
		errors.Is(err, vault.ErrNotApproved),
		errors.Is(err, vault.ErrNotCurrentRole),
		errors.Is(err, vault.ErrUnknownAgent):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrAlreadyCancelled),
		errors.Is(err, engine.ErrAlreadyFilled),
		errors.Is(err, engine.ErrAlreadyClaimed),
		errors.Is(err, engine.ErrAlreadyResolved),
		errors.Is(err, engine.ErrCapacityExceeded),
		errors.Is(err, engine.ErrUnresolved),
		errors.Is(err, vault.ErrInsufficientBalance):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
