package httpx

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ariefcatur/go-shop-backend.git/internal/cart"
	"github.com/ariefcatur/go-shop-backend.git/internal/catalog"
	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/users"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type Catalog interface {
	ListProducts(ctx context.Context, q catalog.ProductQuery) (*catalog.Page, error)
	GetProduct(ctx context.Context, id int64, includeInactive bool) (*catalog.Product, error)
	Featured(ctx context.Context, limit int) ([]catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (*catalog.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch catalog.ProductPatch) (*catalog.Product, error)
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (*catalog.Category, error)
	UpdateCategory(ctx context.Context, id int64, in catalog.CategoryInput) (*catalog.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

type Carts interface {
	Get(ctx context.Context, userID int64) (*cart.Cart, error)
	Add(ctx context.Context, userID, productID int64, qty int) (int, error)
	SetQuantity(ctx context.Context, userID, productID int64, qty int) (int, error)
	Remove(ctx context.Context, userID, productID int64) error
	Clear(ctx context.Context, userID int64) error
}

type Users interface {
	Register(ctx context.Context, in users.RegisterInput) (*users.User, error)
	Login(ctx context.Context, username, password string) (*users.User, error)
	Get(ctx context.Context, id int64) (*users.User, error)
	Exists(ctx context.Context, field users.Field, value string) (bool, error)
	ListCustomers(ctx context.Context) ([]users.User, error)
	SetActive(ctx context.Context, id int64, active bool) (*users.User, error)
	ResetPassword(ctx context.Context, id int64, password string) error
}

// CatalogHandler serves the public, active-only product catalog.
type CatalogHandler struct {
	Catalog Catalog
	Log     *logger.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Get("/products", h.listProducts)
	r.Get("/products/featured", h.featured)
	r.Get("/products/{id}", h.getProduct)
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cs})
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q, err := productQuery(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	page, err := h.Catalog.ListProducts(r.Context(), q)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), id, false)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) featured(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	ps, err := h.Catalog.Featured(r.Context(), limit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": ps})
}

func productQuery(r *http.Request) (catalog.ProductQuery, error) {
	v := r.URL.Query()
	q := catalog.ProductQuery{Search: v.Get("search"), Sort: v.Get("sort")}

	cat, err := queryInt(r, "category_id")
	if err != nil {
		return q, err
	}
	q.CategoryID = int64(cat)
	if q.Page, err = queryInt(r, "page"); err != nil {
		return q, err
	}
	if q.PerPage, err = queryInt(r, "per_page"); err != nil {
		return q, err
	}
	for name, dst := range map[string]**decimal.Decimal{"min_price": &q.MinPrice, "max_price": &q.MaxPrice} {
		raw := v.Get(name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return q, fmt.Errorf("%w: invalid %s", orders.ErrValidation, name)
		}
		*dst = &d
	}
	return q, nil
}

type CartHandler struct {
	Cart Carts
	Log  *logger.Logger
}

type cartReq struct {
	UserID    int64 `json:"user_id"`
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.get)
	r.Post("/cart", h.add)
	r.Delete("/cart", h.clear)
	r.Put("/cart/{productID}", h.update)
	r.Delete("/cart/{productID}", h.remove)
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r, 0)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	c, err := h.Cart.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req cartReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, req.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	n, err := h.Cart.Add(r.Context(), userID, req.ProductID, qty)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": req.ProductID, "quantity": n})
}

func (h *CartHandler) update(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req cartReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: quantity is required", orders.ErrValidation))
		return
	}
	userID, err := callerID(r, req.UserID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	n, err := h.Cart.SetQuantity(r.Context(), userID, productID, *req.Quantity)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "quantity": n})
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productID")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	userID, err := callerID(r, 0)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Cart.Remove(r.Context(), userID, productID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r, 0)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Cart.Clear(r.Context(), userID); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type AuthHandler struct {
	Users Users
	Log   *logger.Logger
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Get("/auth/me", h.me)
	r.Get("/auth/check-username/{username}", h.available(users.FieldUsername, "username"))
	r.Get("/auth/check-email/{email}", h.available(users.FieldEmail, "email"))
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Users.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.Users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

// me returns the user named by X-User-ID (or ?user_id).
func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	id, err := callerID(r, 0)
	if err != nil {
		writeError(w, r, h.Log, errUnauthorized)
		return
	}
	u, err := h.Users.Get(r.Context(), id)
	if err != nil {
		if orders.Kind(err) == "NotFound" {
			err = errUnauthorized
		}
		writeError(w, r, h.Log, err)
		return
	}
	if !u.IsActive {
		writeError(w, r, h.Log, errUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h *AuthHandler) available(field users.Field, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taken, err := h.Users.Exists(r.Context(), field, chi.URLParam(r, param))
		if err != nil {
			writeError(w, r, h.Log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"available": !taken})
	}
}
