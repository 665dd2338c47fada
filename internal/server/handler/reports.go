package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/cjtrace/internal/domain"
)

// ReportLoader reads a stored report, returning domain.ErrNotFound when
// there is none.
type ReportLoader interface {
	Load(ctx context.Context, coinjoin domain.Txid) (*domain.MatchReport, error)
}

// LinkLister finds stored links through an address.
type LinkLister interface {
	LinksByAddress(ctx context.Context, addr domain.Address, opts domain.ListOpts) ([]domain.Link, error)
}

// ReportHandler serves stored reports.
type ReportHandler struct {
	loader ReportLoader
	links  LinkLister
	logger *slog.Logger
}

// NewReportHandler creates a ReportHandler. links may be nil when no report
// database is configured; the address endpoint then answers 501.
func NewReportHandler(loader ReportLoader, links LinkLister, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		loader: loader,
		links:  links,
		logger: logger.With(slog.String("handler", "reports")),
	}
}

// GetReport returns the stored report for a CoinJoin.
// GET /api/reports/{txid}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	txid, err := domain.ParseTxid(r.PathValue("txid"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := h.loader.Load(r.Context(), txid)
	if err != nil {
		code := statusFor(err)
		if code >= 500 {
			h.logger.ErrorContext(r.Context(), "load report",
				slog.String("coinjoin", string(txid)),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// AddressLinks lists the stored links through one CoinJoin output address.
// GET /api/addresses/{address}/links
func (h *ReportHandler) AddressLinks(w http.ResponseWriter, r *http.Request) {
	if h.links == nil {
		writeError(w, http.StatusNotImplemented, "address lookups need the report database")
		return
	}
	addr := domain.Address(r.PathValue("address"))
	if addr == "" {
		writeError(w, http.StatusBadRequest, "address is required")
		return
	}

	links, err := h.links.LinksByAddress(r.Context(), addr, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list links",
			slog.String("address", string(addr)),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), err.Error())
		return
	}
	if links == nil {
		links = []domain.Link{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr, "links": links})
}
