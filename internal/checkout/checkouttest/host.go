// Package checkouttest provides an in-memory checkout host for tests.
package checkouttest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/kitco/pricer/internal/domain"
)

// PriceCall records one price override request.
type PriceCall struct {
	OrderFormID string
	Index       int
	Price       int64
}

// Host fakes the order form endpoints of the checkout API.
type Host struct {
	*httptest.Server

	mu         sync.Mutex
	forms      map[string]*domain.OrderForm
	listPrices map[string]int64
	priceCalls []PriceCall
	addCalls   int
	failPrice  int
	failAdd    int
	failGet    int
}

func NewHost() *Host {
	h := &Host{
		forms:      make(map[string]*domain.OrderForm),
		listPrices: make(map[string]int64),
	}

	r := chi.NewRouter()
	r.Route("/api/checkout/pub/orderForm/{id}", func(r chi.Router) {
		r.Get("/", h.getOrderForm)
		r.Post("/items", h.addItems)
		r.Put("/items/{index}/price", h.setPrice)
	})
	h.Server = httptest.NewServer(r)
	return h
}

// SetCart replaces the line items of an order form.
func (h *Host) SetCart(orderFormID string, items ...domain.OrderItem) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forms[orderFormID] = &domain.OrderForm{OrderFormID: orderFormID, Items: append([]domain.OrderItem(nil), items...)}
}

// SetListPrice sets the catalog price in cents new items of sku get.
func (h *Host) SetListPrice(sku string, cents int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listPrices[sku] = cents
}

// FailPrice makes price overrides answer with status (0 disables).
func (h *Host) FailPrice(status int) { h.mu.Lock(); h.failPrice = status; h.mu.Unlock() }

// FailAdd makes add-item requests answer with status (0 disables).
func (h *Host) FailAdd(status int) { h.mu.Lock(); h.failAdd = status; h.mu.Unlock() }

// FailGet makes order form reads answer with status (0 disables).
func (h *Host) FailGet(status int) { h.mu.Lock(); h.failGet = status; h.mu.Unlock() }

func (h *Host) PriceCalls() []PriceCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]PriceCall(nil), h.priceCalls...)
}

func (h *Host) AddCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addCalls
}

// Cart returns a copy of the order form.
func (h *Host) Cart(orderFormID string) domain.OrderForm {
	h.mu.Lock()
	defer h.mu.Unlock()
	of, ok := h.forms[orderFormID]
	if !ok {
		return domain.OrderForm{OrderFormID: orderFormID}
	}
	cp := *of
	cp.Items = append([]domain.OrderItem(nil), of.Items...)
	return cp
}

func (h *Host) form(id string) *domain.OrderForm {
	of, ok := h.forms[id]
	if !ok {
		of = &domain.OrderForm{OrderFormID: id}
		h.forms[id] = of
	}
	return of
}

func (h *Host) getOrderForm(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failGet != 0 {
		http.Error(w, "get failed", h.failGet)
		return
	}
	writeJSON(w, h.form(chi.URLParam(r, "id")))
}

func (h *Host) addItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderItems []struct {
			ID       string `json:"id"`
			Quantity int    `json:"quantity"`
			Seller   string `json:"seller"`
			Price    *int64 `json:"price"`
		} `json:"orderItems"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.addCalls++
	if h.failAdd != 0 {
		http.Error(w, "add failed", h.failAdd)
		return
	}
	of := h.form(chi.URLParam(r, "id"))
	for _, it := range req.OrderItems {
		if it.Price != nil {
			http.Error(w, "price is not accepted on add", http.StatusBadRequest)
			return
		}
		if idx := of.IndexOfSKU(it.ID); idx >= 0 {
			of.Items[idx].Quantity += it.Quantity
			continue
		}
		of.Items = append(of.Items, domain.OrderItem{
			ID:        it.ID,
			Quantity:  it.Quantity,
			Seller:    it.Seller,
			Price:     h.listPrices[it.ID],
			ListPrice: h.listPrices[it.ID],
		})
	}
	writeJSON(w, of)
}

func (h *Host) setPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price int64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "bad index", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	id := chi.URLParam(r, "id")
	h.priceCalls = append(h.priceCalls, PriceCall{OrderFormID: id, Index: index, Price: req.Price})
	if h.failPrice != 0 {
		http.Error(w, "price failed", h.failPrice)
		return
	}
	of := h.form(id)
	if index < 0 || index >= len(of.Items) {
		http.Error(w, "item not found", http.StatusBadRequest)
		return
	}
	of.Items[index].Price = req.Price
	writeJSON(w, of)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
