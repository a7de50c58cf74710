package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"leasechain/crypto"
	nativecommon "leasechain/native/common"
	"leasechain/native/finance"
	"leasechain/native/lpp"
	"leasechain/services/leased/engine"
	"leasechain/services/leased/journal"
)

const maxBodyBytes = 1 << 20

// Records is the read side of the lease journal.
type Records interface {
	Events(ctx context.Context, lease crypto.Address, limit int) ([]journal.Entry, error)
	Outbox(ctx context.Context, status string) ([]journal.Outbound, error)
	MarkRelayed(ctx context.Context, id int64) error
}

// PoolView reports the liquidity pool backing the leases.
type PoolView interface {
	Totals() (lpp.Totals, error)
	RewardsAPR() (finance.Percent, error)
}

// Config wires the API to the lease host.
type Config struct {
	Executor *engine.Executor
	Host     *engine.Host
	Records  Records
	Pool     PoolView
	Terms    engine.Terms
	Pauses   *nativecommon.Switches
	Limiter  *RateLimiter
	// Auth checks bearer tokens. Nil leaves the API open, which only suits a
	// development node.
	Auth   *Authenticator
	Logger *slog.Logger
}

// Server exposes the lease host over HTTP.
type Server struct {
	cfg    Config
	logger *slog.Logger
	router chi.Router
}

func New(cfg Config) (*Server, error) {
	if cfg.Executor == nil || cfg.Host == nil {
		return nil, fmt.Errorf("leased server: executor and host required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{cfg: cfg, logger: logger}
	s.router = s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	auth := s.cfg.Auth
	r.Route("/v1", func(v1 chi.Router) {
		v1.With(auth.Middleware(), observe("leases.open")).Post("/leases", s.handleOpen)
		v1.With(observe("leases.list")).Get("/leases", s.handleList)
		v1.With(observe("leases.query")).Get("/leases/{addr}", s.handleQuery)
		v1.With(observe("leases.events")).Get("/leases/{addr}/events", s.handleEvents)
		v1.With(auth.Middleware(), s.cfg.Limiter.Middleware("leases.execute"), observe("leases.execute")).Post("/leases/{addr}/execute", s.handleExecute)
		v1.With(auth.Middleware(RoleRelayer), observe("leases.sudo")).Post("/leases/{addr}/sudo", s.handleSudo)
		v1.With(observe("pool.status")).Get("/pool", s.handlePool)
		v1.With(auth.Middleware(RoleRelayer), observe("outbox.list")).Get("/outbox", s.handleOutbox)
		v1.With(auth.Middleware(RoleRelayer), observe("outbox.relayed")).Post("/outbox/{id}/relayed", s.handleRelayed)
		v1.Route("/host", func(host chi.Router) {
			host.Use(auth.Middleware(RoleAdmin))
			host.With(observe("host.prices")).Post("/prices", s.handlePrice)
			host.With(observe("host.credits")).Post("/credits", s.handleCredit)
		})
		v1.With(auth.Middleware(RoleAdmin), observe("admin.pauses")).Put("/admin/pauses/{module}", s.handlePause)
	})
	return r
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	customer, err := s.cfg.Auth.sender(r, req.Customer)
	if err != nil {
		writeJSONError(w, http.StatusForbidden, err)
		return
	}
	form := s.cfg.Terms.Form(customer, strings.TrimSpace(req.Currency), req.MaxLTD)
	addr, err := s.cfg.Executor.Instantiate(r.Context(), customer, []finance.Coin{req.Downpayment}, form)
	if err != nil {
		s.writeExecError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"address": addr.String()})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	addrs, err := s.cfg.Executor.List()
	if err != nil {
		s.writeExecError(w, err)
		return
	}
	out := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, addr.String())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"leases": out})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	addr, ok := leaseParam(w, r)
	if !ok {
		return
	}
	resp, err := s.cfg.Executor.Query(r.Context(), addr)
	if err != nil {
		s.writeExecError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	addr, ok := leaseParam(w, r)
	if !ok {
		return
	}
	if s.cfg.Records == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("journal not configured"))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSONError(w, http.StatusBadRequest, fmt.Errorf("%w: limit must be a non-negative integer", errInvalidRequest))
			return
		}
		limit = parsed
	}
	entries, err := s.cfg.Records.Events(r.Context(), addr, limit)
	if err != nil {
		s.writeExecError(w, err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	addr, ok := leaseParam(w, r)
	if !ok {
		return
	}
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := req.Message.customerMessage()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	sender, err := s.cfg.Auth.sender(r, req.Sender)
	if err != nil {
		writeJSONError(w, http.StatusForbidden, err)
		return
	}
	s.execute(w, r, engine.Call{Lease: addr, Sender: sender, Funds: req.Funds, Msg: msg})
}

func (s *Server) handleSudo(w http.ResponseWriter, r *http.Request) {
	addr, ok := leaseParam(w, r)
	if !ok {
		return
	}
	var body messageBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := body.sudoMessage()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.execute(w, r, engine.Call{Lease: addr, Msg: msg})
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, call engine.Call) {
	kind, err := s.cfg.Executor.Execute(r.Context(), call)
	if err != nil {
		s.writeExecError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lease": call.Lease.String(), "state": kind.String()})
}

type poolStatus struct {
	Available  finance.Coin     `json:"available"`
	Borrowed   finance.Coin     `json:"borrowed"`
	Interest   finance.Coin     `json:"interest"`
	RewardsAPR *finance.Percent `json:"rewards_apr,omitempty"`
}

func (s *Server) handlePool(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Pool == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("pool not configured"))
		return
	}
	totals, err := s.cfg.Pool.Totals()
	if err != nil {
		s.writeExecError(w, err)
		return
	}
	status := poolStatus{Available: totals.Available, Borrowed: totals.Borrowed, Interest: totals.Interest}
	if apr, err := s.cfg.Pool.RewardsAPR(); err == nil {
		status.RewardsAPR = &apr
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleOutbox(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Records == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("journal not configured"))
		return
	}
	items, err := s.cfg.Records.Outbox(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		s.writeExecError(w, err)
		return
	}
	if items == nil {
		items = []journal.Outbound{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": items})
}

func (s *Server) handleRelayed(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Records == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("journal not configured"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("%w: invalid id", errInvalidRequest))
		return
	}
	if err := s.cfg.Records.MarkRelayed(r.Context(), id); err != nil {
		writeJSONError(w, http.StatusConflict, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	var req priceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.cfg.Host.SetPrice(finance.Price{Amount: req.Amount, Quote: req.Quote}); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if req.Address.IsZero() || len(req.Coins) == 0 {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("%w: address and coins required", errInvalidRequest))
		return
	}
	if err := s.cfg.Host.Credit(req.Address, req.Coins...); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	s.logger.Info("host credit", slog.String("account", req.Address.String()), slog.Int("coins", len(req.Coins)))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Pauses == nil {
		writeJSONError(w, http.StatusServiceUnavailable, errors.New("pause switches not configured"))
		return
	}
	var req pauseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	module := chi.URLParam(r, "module")
	s.cfg.Pauses.Set(module, req.Paused)
	s.logger.Warn("module pause changed", slog.String("module", module), slog.Bool("paused", req.Paused))
	writeJSON(w, http.StatusOK, map[string]interface{}{"module": module, "paused": req.Paused})
}

func leaseParam(w http.ResponseWriter, r *http.Request) (crypto.Address, bool) {
	addr, err := crypto.DecodeAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("%w: lease address: %v", errInvalidRequest, err))
		return crypto.Address{}, false
	}
	return addr, true
}

// statusFor maps an execution error class onto an HTTP status.
func statusFor(err error) int {
	switch engine.Classify(err) {
	case engine.ClassValidation:
		return http.StatusBadRequest
	case engine.ClassUnauthorized:
		return http.StatusUnauthorized
	case engine.ClassNotFound:
		return http.StatusNotFound
	case engine.ClassUnsupported, engine.ClassProtocol, engine.ClassPaused:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeExecError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("lease request failed", slog.Any("error", err))
	}
	writeJSONError(w, status, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, map[string]string{"error": message})
}
