// Package webhook receives order events from the commerce platform,
// verifies them with HMAC-SHA256 over the raw body, and records conversions
// used for return-on-ad-spend reporting.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/store"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Signature-SHA256"

// SpendFunc returns account spend for a window; used to compute ROAS for
// the day an order landed on.
type SpendFunc func(ctx context.Context, window model.DateRange) float64

// Handler is the webhook HTTP surface.
type Handler struct {
	secret []byte
	store  store.Store
	spend  SpendFunc
}

// New creates a Handler. spend may be nil, in which case responses omit ROAS.
func New(secret string, st store.Store, spend SpendFunc) *Handler {
	return &Handler{secret: []byte(secret), store: st, spend: spend}
}

// Sign computes the hex HMAC-SHA256 of body under secret. Exposed for
// senders and tests.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// verify checks the signature in constant time.
func (h *Handler) verify(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(h.secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// orderEvent is the inbound payload.
type orderEvent struct {
	OrderID   string    `json:"order_id"`
	Total     float64   `json:"total"`
	Currency  string    `json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

// Router builds the webhook route tree.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Post("/webhook/orders", h.handleOrder)
	return r
}

func (h *Handler) handleOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, `{"success":false,"error":"unreadable body"}`, http.StatusBadRequest)
		return
	}

	if !h.verify(body, r.Header.Get(SignatureHeader)) {
		zap.L().Warn("webhook: signature verification failed",
			zap.String("remote", r.RemoteAddr),
		)
		http.Error(w, `{"success":false,"error":"invalid signature"}`, http.StatusUnauthorized)
		return
	}

	var ev orderEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.OrderID == "" {
		http.Error(w, `{"success":false,"error":"invalid order payload"}`, http.StatusBadRequest)
		return
	}

	conv := model.Conversion{
		OrderID:    ev.OrderID,
		Value:      ev.Total,
		Currency:   ev.Currency,
		OccurredAt: ev.CreatedAt,
	}
	stored, err := h.store.RecordConversion(r.Context(), conv)
	if err != nil {
		zap.L().Error("webhook: record conversion failed",
			zap.String("order_id", ev.OrderID),
			zap.Error(err),
		)
		http.Error(w, `{"success":false,"error":"failed to record conversion"}`, http.StatusInternalServerError)
		return
	}

	resp := map[string]any{"success": true, "data": map[string]any{"conversion_id": stored.ID}}

	if h.spend != nil {
		day := stored.OccurredAt.Format("2006-01-02")
		window := model.SingleDay(day)
		spend := h.spend(r.Context(), window)
		roas := 0.0
		if spend > 0 {
			since, _ := time.Parse("2006-01-02", day)
			revenue, err := h.store.TotalRevenue(r.Context(), since, since.AddDate(0, 0, 1))
			if err == nil {
				roas = revenue / spend
			}
		}
		resp["data"].(map[string]any)["roas"] = roas
		resp["data"].(map[string]any)["window"] = window
	}

	zap.L().Info("webhook: conversion recorded",
		zap.String("order_id", ev.OrderID),
		zap.Float64("value", ev.Total),
	)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
