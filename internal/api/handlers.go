package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kitco/pricer/internal/cartsync"
	"github.com/kitco/pricer/internal/catalog"
	"github.com/kitco/pricer/internal/discount"
	"github.com/kitco/pricer/internal/domain"
	"github.com/kitco/pricer/internal/repository"
	"github.com/kitco/pricer/internal/simulation"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	prices    *simulation.Service
	local     simulation.Source
	schedule  discount.Schedule
	catalog   *catalog.Service
	syncer    *cartsync.Syncer
	ticks     *repository.TickRepo
	overrides *repository.OverrideRepo
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Str("component", "api").Err(err).Msg("encode error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02", s)
		if err != nil {
			return nil
		}
	}
	return &t
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// priceState returns the simulated price of id. A catalog product the
// clock has not anchored yet reports a zero, loading state.
func (h *Handlers) priceState(r *http.Request, id string) (domain.PriceState, bool) {
	if st, ok := h.prices.State(id); ok {
		return st, true
	}
	if _, err := h.catalog.Product(r.Context(), id); err != nil {
		return domain.PriceState{}, false
	}
	return domain.PriceState{ProductID: id}, true
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"products": len(h.prices.Products()),
	})
}

// --- SimulatePrice ---

func (h *Handlers) SimulatePrice(w http.ResponseWriter, r *http.Request) {
	base, err := strconv.ParseFloat(r.URL.Query().Get("basePrice"), 64)
	if err != nil || base <= 0 {
		writeError(w, http.StatusBadRequest, "basePrice must be a positive number")
		return
	}

	price, _, err := h.local.Next(r.Context(), base)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{
		"basePrice":    base,
		"currentPrice": price,
	})
}

// --- IngestProduct ---

func (h *Handlers) IngestProduct(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	result, err := h.catalog.Ingest(r.Context(), data)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrNoPrice):
			writeError(w, http.StatusUnprocessableEntity, "No product data available")
		case errors.Is(err, catalog.ErrInvalidSnapshot):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// --- ListProducts ---

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type productEntry struct {
		ID    string            `json:"product_id"`
		Name  string            `json:"name"`
		SKUs  []string          `json:"skus"`
		Price domain.PriceState `json:"price"`
	}
	out := make([]productEntry, 0, len(products))
	for i := range products {
		st, _ := h.prices.State(products[i].ID)
		out = append(out, productEntry{
			ID:    products[i].ID,
			Name:  products[i].Name,
			SKUs:  products[i].SKUs(),
			Price: st,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"products": out,
		"total":    len(out),
	})
}

// --- GetPrice ---

func (h *Handlers) GetPrice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := h.priceState(r, id)
	if !ok {
		writeError(w, http.StatusNotFound, "No product data available")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product_id":       id,
		"summary":          discount.Summarize(st.OriginalPrice, st.CurrentPrice),
		"origin":           st.Origin,
		"updated_at":       st.UpdatedAt,
		"interval_seconds": h.prices.Interval().Seconds(),
	})
}

// --- GetBulkDiscounts ---

func (h *Handlers) GetBulkDiscounts(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := h.priceState(r, id)
	if !ok {
		writeError(w, http.StatusNotFound, "No product data available")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"product_id":     id,
		"original_price": st.OriginalPrice,
		"current_price":  st.CurrentPrice,
		"table":          h.schedule.Table(st.CurrentPrice),
	})
}

// --- GetQuote ---

func (h *Handlers) GetQuote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok := h.priceState(r, id)
	if !ok {
		writeError(w, http.StatusNotFound, "No product data available")
		return
	}
	if st.Loading() {
		writeError(w, http.StatusConflict, "Loading...")
		return
	}

	q := r.URL.Query()
	method := domain.PaymentMethod(q.Get("method"))
	if method == "" {
		method = domain.PaymentCard
	}
	if _, ok := h.schedule.MethodDiscount[method]; !ok {
		writeError(w, http.StatusBadRequest, "unknown payment method")
		return
	}
	quantity := parseIntDefault(q.Get("quantity"), 1)

	quote, err := h.schedule.Quote(st.CurrentPrice, method, quantity)
	if err != nil {
		if errors.Is(err, discount.ErrUnavailable) {
			writeError(w, http.StatusUnprocessableEntity, "N/A: no rate for this payment method and quantity")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// --- ListTicks ---

func (h *Handlers) ListTicks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()
	filter := repository.TickFilter{
		ProductID: id,
		From:      parseTime(q.Get("from")),
		To:        parseTime(q.Get("to")),
		Page:      parseIntDefault(q.Get("page"), 1),
		Limit:     parseIntDefault(q.Get("limit"), 50),
	}

	ticks, total, err := h.ticks.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats, err := h.ticks.Stats(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ticks": ticks,
		"total": total,
		"page":  filter.Page,
		"limit": filter.Limit,
		"stats": stats,
	})
}

// --- WatchCart ---

type cartRequest struct {
	ProductID string `json:"productId"`
	SKU       string `json:"skuId"`
}

func (h *Handlers) WatchCart(w http.ResponseWriter, r *http.Request) {
	orderFormID := chi.URLParam(r, "orderFormId")
	var req cartRequest
	if err := decodeBody(r, &req); err != nil || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}
	if _, ok := h.prices.State(req.ProductID); !ok {
		writeError(w, http.StatusNotFound, "No product data available")
		return
	}

	h.syncer.Watch(orderFormID, req.ProductID)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"order_form_id": orderFormID,
		"product_id":    req.ProductID,
	})
}

// --- UnwatchCart ---

func (h *Handlers) UnwatchCart(w http.ResponseWriter, r *http.Request) {
	orderFormID := chi.URLParam(r, "orderFormId")
	if !h.syncer.Unwatch(orderFormID) {
		writeError(w, http.StatusNotFound, "cart is not watched")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- SyncCart ---

func (h *Handlers) SyncCart(w http.ResponseWriter, r *http.Request) {
	orderFormID := chi.URLParam(r, "orderFormId")
	var req cartRequest
	if err := decodeBody(r, &req); err != nil || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	result, err := h.syncer.Sync(r.Context(), orderFormID, req.ProductID)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// --- AddToCart ---

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	orderFormID := chi.URLParam(r, "orderFormId")
	var req cartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	switch {
	case req.SKU == "" && req.ProductID == "":
		writeError(w, http.StatusBadRequest, "skuId or productId is required")
		return
	case req.ProductID == "":
		p, err := h.catalog.ProductForSKU(r.Context(), req.SKU)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown sku")
			return
		}
		req.ProductID = p.ID
	case req.SKU == "":
		p, err := h.catalog.Product(r.Context(), req.ProductID)
		if err != nil || p.DefaultSKU() == "" {
			writeError(w, http.StatusNotFound, "product has no sku")
			return
		}
		req.SKU = p.DefaultSKU()
	}

	of, err := h.syncer.AddToCart(r.Context(), orderFormID, req.SKU, req.ProductID)
	if err != nil {
		var stepErr *cartsync.StepError
		switch {
		case errors.Is(err, cartsync.ErrPriceLoading):
			writeError(w, http.StatusConflict, "Loading...")
		case errors.Is(err, cartsync.ErrForeignSKU):
			writeError(w, http.StatusBadRequest, "skuId is not an item of productId")
		case errors.As(err, &stepErr):
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error": stepErr.Err.Error(),
				"step":  string(stepErr.Step),
			})
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, of)
}

// --- ListOverrides ---

func (h *Handlers) ListOverrides(w http.ResponseWriter, r *http.Request) {
	orderFormID := chi.URLParam(r, "orderFormId")
	q := r.URL.Query()
	filter := repository.OverrideFilter{
		OrderFormID: orderFormID,
		Status:      q.Get("status"),
		Page:        parseIntDefault(q.Get("page"), 1),
		Limit:       parseIntDefault(q.Get("limit"), 50),
	}

	overrides, total, err := h.overrides.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	summary, err := h.overrides.Summary(r.Context(), orderFormID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"overrides": overrides,
		"total":     total,
		"page":      filter.Page,
		"limit":     filter.Limit,
		"summary":   summary,
	})
}
