package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// Runner performs one analysis run including persistence.
type Runner interface {
	Run(ctx context.Context, coinjoin domain.Txid) (*domain.MatchReport, error)
}

// AnalyzeHandler triggers analyses on request.
type AnalyzeHandler struct {
	runner  Runner
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnalyzeHandler creates an AnalyzeHandler. Each run is bounded by
// timeout.
func NewAnalyzeHandler(runner Runner, timeout time.Duration, logger *slog.Logger) *AnalyzeHandler {
	return &AnalyzeHandler{
		runner:  runner,
		timeout: timeout,
		logger:  logger.With(slog.String("handler", "analyze")),
	}
}

// Analyze runs the analysis synchronously and returns the report.
// POST /api/analyze/{txid}
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	txid, err := domain.ParseTxid(r.PathValue("txid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rep, err := h.runner.Run(ctx, txid)
	if err != nil {
		code := statusFor(err)
		h.logger.ErrorContext(ctx, "analysis failed",
			slog.String("coinjoin", string(txid)),
			slog.Int("status", code),
			slog.String("error", err.Error()),
		)
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
