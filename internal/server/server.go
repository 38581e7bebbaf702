package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/iwvelando/emi-calculator/internal/calculator"
	"github.com/iwvelando/emi-calculator/internal/directory"
	"github.com/iwvelando/emi-calculator/internal/forum"
	"github.com/iwvelando/emi-calculator/pkg/constants"
	"github.com/iwvelando/emi-calculator/pkg/emi"
	"github.com/iwvelando/emi-calculator/pkg/format"
	"go.uber.org/zap"
)

//go:embed static/*
var staticFiles embed.FS

// Options wires the handler to its services.
type Options struct {
	Calculator  *calculator.Calculator
	Defaults    emi.LoanInput
	Catalog     *directory.Catalog
	Forum       *forum.Service
	Limiter     Limiter
	MaxBodySize int64
	Version     string
}

type handler struct {
	logger      *zap.Logger
	calc        *calculator.Calculator
	defaults    emi.LoanInput
	catalog     *directory.Catalog
	forum       *forum.Service
	maxBodySize int64
	version     string
	upgrader    websocket.Upgrader

	postEMI  http.HandlerFunc
	ask      http.HandlerFunc
	answer   http.HandlerFunc
	likePost http.HandlerFunc
}

// NewHandler constructs the HTTP handler that serves the web UI and the
// calculator, directory and community APIs.
func NewHandler(logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	maxBodySize := opts.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	trimmedVersion := strings.TrimSpace(opts.Version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	calc := opts.Calculator
	if calc == nil {
		calc = calculator.New(logger, calculator.DefaultLimits())
	}
	defaults := opts.Defaults
	if defaults == (emi.LoanInput{}) {
		defaults = calculator.Defaults()
	}

	h := &handler{
		logger:      logger,
		calc:        calc,
		defaults:    defaults,
		catalog:     opts.Catalog,
		forum:       opts.Forum,
		maxBodySize: maxBodySize,
		version:     trimmedVersion,
		// A nil CheckOrigin rejects browser handshakes from other hosts.
		upgrader: websocket.Upgrader{},
	}
	h.postEMI = rateLimited(opts.Limiter, logger, h.handleEMIPost)
	h.ask = rateLimited(opts.Limiter, logger, h.handleAsk)
	h.answer = rateLimited(opts.Limiter, logger, h.handleAnswer)
	h.likePost = rateLimited(opts.Limiter, logger, h.handleLike)

	mux := http.NewServeMux()

	// Calculator
	mux.HandleFunc("/api/emi", h.handleEMI)
	mux.HandleFunc("/api/emi/defaults", h.handleDefaults)
	mux.HandleFunc("/api/emi/live", h.handleLive)

	// Loan directory
	if h.catalog != nil {
		mux.HandleFunc("/api/loan-types", h.handleLoanTypes)
		mux.HandleFunc("/api/loan-types/{id}", h.handleLoanType)
		mux.HandleFunc("/api/bank-rates", h.handleBankRates)
	}

	// Community forum
	if h.forum != nil {
		mux.HandleFunc("/api/community/questions", h.handleQuestions)
		mux.HandleFunc("/api/community/questions/{id}", h.handleQuestion)
		mux.HandleFunc("/api/community/questions/{id}/answers", h.handleAnswers)
		mux.HandleFunc("/api/community/questions/{id}/answers/{answerID}/like", h.handleLikeAnswer)
	}

	// Version endpoint for UI metadata
	mux.HandleFunc("/api/version", h.handleVersion)

	// Static assets (web UI)
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(fmt.Sprintf("failed to prepare embedded static files: %v", err))
	}
	mux.Handle("/", http.FileServer(http.FS(sub)))

	return mux
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error  string       `json:"error"`
	Fields []fieldError `json:"fields,omitempty"`
}

type formattedResult struct {
	MonthlyInstallment string `json:"monthlyInstallment"`
	TotalInterest      string `json:"totalInterest"`
	TotalPayment       string `json:"totalPayment"`
}

type calculationResponse struct {
	calculator.Calculation
	Formatted formattedResult `json:"formatted"`
}

type defaultsResponse struct {
	Defaults emi.LoanInput     `json:"defaults"`
	Limits   calculator.Limits `json:"limits"`
}

func newCalculationResponse(c calculator.Calculation) calculationResponse {
	return calculationResponse{
		Calculation: c,
		Formatted: formattedResult{
			MonthlyInstallment: format.Rupees(c.Result.MonthlyInstallment),
			TotalInterest:      format.Rupees(c.Result.TotalInterest),
			TotalPayment:       format.Rupees(c.Result.TotalPayment),
		},
	}
}

func (h *handler) handleEMI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleEMIGet(w, r)
	case http.MethodPost:
		h.postEMI(w, r)
	default:
		h.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *handler) handleEMIGet(w http.ResponseWriter, r *http.Request) {
	in := h.defaults
	query := r.URL.Query()
	for key, dst := range map[string]*float64{
		calculator.FieldPrincipal: &in.Principal,
		calculator.FieldRate:      &in.AnnualRatePercent,
		calculator.FieldTerm:      &in.TermYears,
	} {
		raw := strings.TrimSpace(query.Get(key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid %s %q", key, raw), "server.handleEMIGet")
			return
		}
		*dst = v
	}

	h.calculate(r.Context(), w, in, "server.handleEMIGet")
}

func (h *handler) handleEMIPost(w http.ResponseWriter, r *http.Request) {
	var in emi.LoanInput
	if status, err := h.decodeJSON(w, r, &in); err != nil {
		h.respondError(w, status, err.Error(), "server.handleEMIPost")
		return
	}
	h.calculate(r.Context(), w, in, "server.handleEMIPost")
}

func (h *handler) calculate(ctx context.Context, w http.ResponseWriter, in emi.LoanInput, op string) {
	calc, err := h.calc.Calculate(ctx, in)
	if err != nil {
		status, resp := h.calculationError(err)
		h.logFailure(op, status, err.Error())
		writeJSON(h.logger, w, status, resp)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, newCalculationResponse(calc))
}

func (h *handler) calculationError(err error) (int, errorResponse) {
	var verr *calculator.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]fieldError, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = fieldError(f)
		}
		return http.StatusUnprocessableEntity, errorResponse{Error: "invalid loan input", Fields: fields}
	case errors.Is(err, emi.ErrNotComputable):
		return http.StatusUnprocessableEntity, errorResponse{Error: emi.ErrNotComputable.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}
}

func (h *handler) handleDefaults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, defaultsResponse{Defaults: h.defaults, Limits: h.calc.Limits()})
}

func (h *handler) handleLoanTypes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"loanTypes": h.catalog.LoanTypes(),
	})
}

func (h *handler) handleLoanType(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}

	banksOnly := false
	if raw := r.URL.Query().Get("banksOnly"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid banksOnly %q", raw), "server.handleLoanType")
			return
		}
		banksOnly = parsed
	}

	id := r.PathValue("id")
	loanType, ok := h.catalog.LoanType(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, fmt.Sprintf("unknown loan type %q", id), "server.handleLoanType")
		return
	}
	loanType.Providers, _ = h.catalog.Providers(id, banksOnly)
	writeJSON(h.logger, w, http.StatusOK, loanType)
}

func (h *handler) handleBankRates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}

	sortByRate := false
	switch sortKey := r.URL.Query().Get("sort"); sortKey {
	case "":
	case "rate":
		sortByRate = true
	default:
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported sort %q", sortKey), "server.handleBankRates")
		return
	}

	resp := map[string]interface{}{
		"bankRates": h.catalog.BankRates(sortByRate),
	}
	if cheapest, ok := h.catalog.CheapestBankRate(); ok {
		resp["cheapest"] = cheapest
	}
	writeJSON(h.logger, w, http.StatusOK, resp)
}

func (h *handler) handleQuestions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		questions, err := h.forum.List(r.Context())
		if err != nil {
			h.respondForumError(w, err, "server.handleQuestions")
			return
		}
		writeJSON(h.logger, w, http.StatusOK, map[string]interface{}{"questions": questions})
	case http.MethodPost:
		h.ask(w, r)
	default:
		h.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var in forum.NewQuestion
	if status, err := h.decodeJSON(w, r, &in); err != nil {
		h.respondError(w, status, err.Error(), "server.handleAsk")
		return
	}
	q, err := h.forum.Ask(r.Context(), in)
	if err != nil {
		h.respondForumError(w, err, "server.handleAsk")
		return
	}
	writeJSON(h.logger, w, http.StatusCreated, q)
}

func (h *handler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}
	q, err := h.forum.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondForumError(w, err, "server.handleQuestion")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, q)
}

func (h *handler) handleAnswers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, http.MethodPost)
		return
	}
	h.answer(w, r)
}

func (h *handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var in forum.NewAnswer
	if status, err := h.decodeJSON(w, r, &in); err != nil {
		h.respondError(w, status, err.Error(), "server.handleAnswer")
		return
	}
	a, err := h.forum.Answer(r.Context(), r.PathValue("id"), in)
	if err != nil {
		h.respondForumError(w, err, "server.handleAnswer")
		return
	}
	writeJSON(h.logger, w, http.StatusCreated, a)
}

func (h *handler) handleLikeAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.methodNotAllowed(w, http.MethodPost)
		return
	}
	h.likePost(w, r)
}

func (h *handler) handleLike(w http.ResponseWriter, r *http.Request) {
	likes, err := h.forum.Like(r.Context(), r.PathValue("id"), r.PathValue("answerID"))
	if err != nil {
		h.respondForumError(w, err, "server.handleLike")
		return
	}
	writeJSON(h.logger, w, http.StatusOK, map[string]int{"likes": likes})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.methodNotAllowed(w, http.MethodGet)
		return
	}

	writeJSON(h.logger, w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// decodeJSON reads a size-limited JSON body into dst and returns the status
// to report when it cannot.
func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds limit of %d bytes", h.maxBodySize)
		}
		return http.StatusBadRequest, fmt.Errorf("failed to decode request: %v", err)
	}
	return http.StatusOK, nil
}

func (h *handler) respondForumError(w http.ResponseWriter, err error, op string) {
	var verr *forum.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]fieldError, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = fieldError(f)
		}
		h.logFailure(op, http.StatusUnprocessableEntity, err.Error())
		writeJSON(h.logger, w, http.StatusUnprocessableEntity, errorResponse{Error: "invalid post", Fields: fields})
	case forum.IsNotFound(err):
		h.respondError(w, http.StatusNotFound, err.Error(), op)
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error(), op)
	}
}

func (h *handler) respondError(w http.ResponseWriter, status int, msg string, op string) {
	h.logFailure(op, status, msg)
	writeJSON(h.logger, w, status, errorResponse{Error: msg})
}

func (h *handler) logFailure(op string, status int, msg string) {
	log := h.logger.Info
	if status >= http.StatusInternalServerError {
		log = h.logger.Error
	}
	log("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
}

func (h *handler) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(h.logger, w, http.StatusMethodNotAllowed, errorResponse{Error: http.StatusText(http.StatusMethodNotAllowed)})
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to write JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
	}
}
