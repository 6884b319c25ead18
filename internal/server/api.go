package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"pccmo/internal"
	"pccmo/internal/sheets"
)

const defaultPageSize = 100

type orderResponse struct {
	ID              int64    `json:"id"`
	OrderDate       *string  `json:"orderDate"`
	FactoryID       *int     `json:"factoryId"`
	ProductCode     *string  `json:"productCode"`
	ProductDetail   *string  `json:"productDetail"`
	ProductQuantity *float64 `json:"productQuantity"`
	ProductUnit     *string  `json:"productUnit"`
	CementQuantity  *float64 `json:"cementQuantity"`
	LoadedQuantity  *float64 `json:"loadedQuantity"`
	Difference      *float64 `json:"difference"`
	Supervisor      *string  `json:"supervisor"`
	Notes           *string  `json:"notes"`
	RawMessage      string   `json:"rawMessage"`
	LineUserID      *string  `json:"lineUserId"`
	LineGroupID     *string  `json:"lineGroupId"`
	Source          string   `json:"source"`
	SyncedToSheets  bool     `json:"syncedToSheets"`
	CreatedAt       string   `json:"createdAt"`
}

func floatPtr(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

func toOrderResponse(o internal.StoredOrder) orderResponse {
	return orderResponse{
		ID:              o.ID,
		OrderDate:       o.OrderDate,
		FactoryID:       o.FactoryID,
		ProductCode:     o.ProductCode,
		ProductDetail:   o.ProductDetail,
		ProductQuantity: floatPtr(o.ProductQuantity),
		ProductUnit:     o.ProductUnit,
		CementQuantity:  floatPtr(o.CementQuantity),
		LoadedQuantity:  floatPtr(o.LoadedQuantity),
		Difference:      floatPtr(o.Difference),
		Supervisor:      o.Supervisor,
		Notes:           o.Notes,
		RawMessage:      o.RawMessage,
		LineUserID:      o.LineUserID,
		LineGroupID:     o.LineGroupID,
		Source:          o.Source,
		SyncedToSheets:  o.Synced,
		CreatedAt:       o.CreatedAt,
	}
}

func (s *Server) apiHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "PCC-MO LINE Bot",
		"status":  "running",
		"version": "1.0.0",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	total, err := s.db.CountOrders(r.Context(), internal.OrderFilter{})
	db := map[string]any{"connected": err == nil, "totalOrders": total}

	gs := map[string]any{"success": false}
	if info, err := s.sync.TestConnection(r.Context()); err != nil {
		gs["error"] = err.Error()
	} else {
		gs["success"] = true
		gs["title"] = info.Title
		gs["sheets"] = info.Sheets
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"database":     db,
		"googleSheets": gs,
	})
}

func splitList(values ...string) []string {
	var out []string
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		break
	}
	return out
}

func optionalFloat(v string) *float64 {
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

// parseFilters reads dashboard filters. Plural list keys take precedence
// over their singular forms and "date" sets both bounds.
func parseFilters(q url.Values) internal.OrderFilter {
	f := internal.OrderFilter{
		StartDate:    firstNonEmpty(q.Get("startDate"), q.Get("date")),
		EndDate:      firstNonEmpty(q.Get("endDate"), q.Get("date")),
		ProductCodes: splitList(q.Get("productCodes"), q.Get("productCode")),
		Supervisors:  splitList(q.Get("supervisors"), q.Get("supervisor")),
		LineGroupIDs: splitList(q.Get("lineGroupIds"), q.Get("lineGroupId")),
		LineUserIDs:  splitList(q.Get("lineUserIds"), q.Get("lineUserId")),
		MinCement:    optionalFloat(q.Get("minCement")),
		MaxCement:    optionalFloat(q.Get("maxCement")),
		Search:       strings.TrimSpace(q.Get("search")),
	}
	for _, v := range splitList(q.Get("factoryIds"), q.Get("factoryId")) {
		if id, err := strconv.Atoi(v); err == nil {
			f.FactoryIDs = append(f.FactoryIDs, id)
		}
	}
	switch q.Get("synced") {
	case "true", "1":
		t := true
		f.Synced = &t
	case "false", "0":
		b := false
		f.Synced = &b
	}
	return f
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func queryInt(q url.Values, key string, fallback int) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q, "limit", defaultPageSize)
	offset := queryInt(q, "offset", 0)
	filter := parseFilters(q)

	orders, err := s.db.ListOrders(r.Context(), filter, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.db.CountOrders(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": out,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) filterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.db.FilterOptions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) dailySummary(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	summary, err := s.db.DailySummary(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "summary": nonNil(summary)})
}

func (s *Server) reports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ctx := r.Context()

	if q.Get("period") == "monthly" {
		month := q.Get("month")
		if month == "" {
			writeError(w, http.StatusBadRequest, "month is required")
			return
		}
		byFactory, err := s.db.SummaryByMonth(ctx, month, "factory")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		byProduct, err := s.db.SummaryByMonth(ctx, month, "product")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"period": "monthly", "month": month,
			"byFactory": nonNil(byFactory), "byProduct": nonNil(byProduct),
		})
		return
	}

	date := q.Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	byFactory, err := s.db.SummaryByDate(ctx, date, "factory")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byProduct, err := s.db.SummaryByDate(ctx, date, "product")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"period": "daily", "date": date,
		"byFactory": nonNil(byFactory), "byProduct": nonNil(byProduct),
	})
}

func nonNil(rows []internal.SummaryRow) []internal.SummaryRow {
	if rows == nil {
		return []internal.SummaryRow{}
	}
	return rows
}

func (s *Server) syncSheets(w http.ResponseWriter, r *http.Request) {
	n, err := s.sync.SyncUnsynced(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"synced": n})
	case errors.Is(err, sheets.ErrNotConfigured), errors.Is(err, sheets.ErrSyncInProgress):
		writeJSON(w, http.StatusOK, map[string]any{"synced": 0, "error": err.Error()})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) initSheet(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.EnsureHeader(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Header row created"})
}

func (s *Server) migrate(w http.ResponseWriter, r *http.Request) {
	total, updated, err := s.proc.BackfillProductQuantities(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	resp := map[string]any{"success": true, "total": total, "updated": updated}
	if total == 0 {
		resp["message"] = "No records need migration"
	}
	writeJSON(w, http.StatusOK, resp)
}
