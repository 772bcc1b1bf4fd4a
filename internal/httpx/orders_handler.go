package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/redisx"
	"github.com/ariefcatur/go-shop-backend.git/internal/uploads"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type ProofStore interface {
	SaveProof(r io.Reader, filename string) (orders.PaymentProof, error)
	Remove(url string) error
}

type OrdersHandler struct {
	Service *orders.Service
	Proofs  ProofStore
	// Redis is optional; without it there is no idempotency shortcut and
	// status reads go straight to the database.
	Redis redis.Cmdable
	Log   *logger.Logger
}

type CreateOrderReq struct {
	UserID          int64                `json:"user_id"`
	ShippingAddress string               `json:"shipping_address"`
	PaymentMethod   orders.PaymentMethod `json:"payment_method"`
	ProductIDs      []int64              `json:"product_ids"`
}

type CreateOrderResp struct {
	Order      *orders.Order `json:"order"`
	Idempotent bool          `json:"idempotent"`
}

type cancelReq struct {
	UserID int64 `json:"user_id"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getStatus)
	r.Put("/orders/{id}/cancel", h.cancelOrder)
	r.Post("/orders/{id}/payment-proof", h.uploadProof)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, req.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Idempotency via Redis; the key is scoped per user and claimed before
	// placing so concurrent retries cannot both go through.
	idemKey := r.Header.Get("Idempotency-Key")
	claimed := false
	if h.Redis != nil && idemKey != "" {
		ok, id, err := redisx.ClaimOrderKey(ctx, h.Redis, userID, idemKey)
		switch {
		case err != nil:
			h.Log.Warn("idempotency claim", "user_id", userID, "err", err)
		case ok:
			claimed = true
		case id == 0:
			writeError(w, r, h.Log, fmt.Errorf("%w: a request with this Idempotency-Key is still in progress", orders.ErrConflict))
			return
		default:
			o, err := h.Service.GetOrder(ctx, id)
			if err != nil {
				writeError(w, r, h.Log, err)
				return
			}
			writeJSON(w, http.StatusOK, CreateOrderResp{Order: o, Idempotent: true})
			return
		}
	}

	o, err := h.Service.PlaceOrder(ctx, orders.PlaceOrderInput{
		UserID:          userID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ProductIDs:      req.ProductIDs,
	})
	if err != nil {
		if claimed {
			if rerr := redisx.ReleaseOrderKey(ctx, h.Redis, userID, idemKey); rerr != nil {
				h.Log.Warn("release idempotency key", "user_id", userID, "err", rerr)
			}
		}
		writeError(w, r, h.Log, err)
		return
	}

	if claimed {
		if err := redisx.RememberOrder(ctx, h.Redis, userID, idemKey, o.ID); err != nil {
			h.Log.Warn("remember idempotency key", "order_id", o.ID, "err", err)
		}
	}
	cacheStatus(ctx, h.Redis, h.Log, o)

	writeJSON(w, http.StatusCreated, CreateOrderResp{Order: o})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r, 0)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	list, err := h.Service.ListUserOrders(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

// getOrder answers 404 for orders of other users.
func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, 0)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Service.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if o.UserID != userID {
		writeError(w, r, h.Log, orders.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, 0)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache; entry tanpa user_id dianggap miss
	if h.Redis != nil {
		e, ok, err := redisx.StatusCache{R: h.Redis}.Get(ctx, id)
		if err != nil {
			h.Log.Warn("status cache read", "order_id", id, "err", err)
		}
		if ok && e.UserID == userID {
			writeJSON(w, http.StatusOK, e)
			return
		}
	}

	// 2) fallback DB
	o, err := h.Service.GetOrder(ctx, id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if o.UserID != userID {
		writeError(w, r, h.Log, orders.ErrNotFound)
		return
	}
	cacheStatus(ctx, h.Redis, h.Log, o)
	writeJSON(w, http.StatusOK, statusEntry(o))
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req cancelReq
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	}
	userID, err := callerID(r, req.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.CancelOrder(ctx, id, userID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	cacheStatus(ctx, h.Redis, h.Log, o)
	writeJSON(w, http.StatusOK, o)
}

// uploadProof expects multipart fields user_id and payment_proof.
func (h *OrdersHandler) uploadProof(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxProofSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: invalid upload: %v", orders.ErrValidation, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var formUser int64
	if v := r.FormValue("user_id"); v != "" {
		formUser, _ = strconv.ParseInt(v, 10, 64)
	}
	userID, err := callerID(r, formUser)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	file, header, err := r.FormFile("payment_proof")
	if err != nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: payment_proof file is required", orders.ErrValidation))
		return
	}
	defer file.Close()

	proof, err := h.Proofs.SaveProof(file, header.Filename)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Service.AttachPaymentProof(ctx, id, userID, proof)
	if err != nil {
		if rerr := h.Proofs.Remove(proof.URL); rerr != nil {
			h.Log.Warn("remove orphan upload", "url", proof.URL, "err", rerr)
		}
		writeError(w, r, h.Log, err)
		return
	}
	cacheStatus(ctx, h.Redis, h.Log, o)
	writeJSON(w, http.StatusOK, o)
}

func statusEntry(o *orders.Order) redisx.StatusEntry {
	return redisx.StatusEntry{
		OrderID:     o.ID,
		UserID:      o.UserID,
		OrderNumber: o.OrderNumber,
		Status:      string(o.Status),
		UpdatedAt:   o.UpdatedAt,
	}
}

// cacheStatus is best effort; the worker refreshes the entry from events too.
func cacheStatus(ctx context.Context, rdb redis.Cmdable, log *logger.Logger, o *orders.Order) {
	if rdb == nil {
		return
	}
	if err := (redisx.StatusCache{R: rdb}).Set(ctx, statusEntry(o)); err != nil {
		log.Warn("status cache write", "order_id", o.ID, "err", err)
	}
}
