package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/catalog"
	"github.com/ariefcatur/go-shop-backend.git/internal/logger"
	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/ariefcatur/go-shop-backend.git/internal/reports"
	"github.com/ariefcatur/go-shop-backend.git/internal/uploads"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type Reports interface {
	Sales(ctx context.Context, rg reports.Range) (*reports.Report, error)
	Dashboard(ctx context.Context) (*reports.Dashboard, error)
}

type ImageStore interface {
	SaveProductImage(r io.Reader, filename string) (uploads.Image, error)
	RemoveProductImage(name string) error
	Remove(url string) error
}

type AdminHandler struct {
	Orders  *orders.Service
	Catalog Catalog
	Users   Users
	Reports Reports
	Images  ImageStore
	Redis   redis.Cmdable
	Log     *logger.Logger
	// Now is swappable for report tests.
	Now func() time.Time
}

type statusReq struct {
	Status        orders.Status `json:"status"`
	DeclineReason string        `json:"decline_reason"`
}

type activeReq struct {
	IsActive *bool `json:"is_active"`
}

type passwordReq struct {
	Password string `json:"password"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)

		r.Get("/dashboard", h.dashboard)

		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)
		r.Post("/upload-product-image", h.uploadImage)
		r.Delete("/delete-product-image/{filename}", h.deleteImage)

		r.Get("/categories", h.listCategories)
		r.Post("/categories", h.createCategory)
		r.Put("/categories/{id}", h.updateCategory)
		r.Delete("/categories/{id}", h.deleteCategory)

		r.Get("/orders", h.listOrders)
		r.Put("/orders/{id}/status", h.setStatus)

		r.Get("/users", h.listUsers)
		r.Put("/users/{id}/active", h.setActive)
		r.Post("/users/{id}/reset-password", h.resetPassword)

		r.Get("/reports", h.salesReport)
	})
}

// requireAdmin: X-User-ID harus user admin yang aktif.
func (h *AdminHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64)
		if err != nil || id <= 0 {
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
		if !u.IsAdmin || !u.IsActive {
			writeError(w, r, h.Log, errForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *AdminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q, err := productQuery(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	q.IncludeInactive = true
	page, err := h.Catalog.ListProducts(r.Context(), q)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var in catalog.ProductInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var patch catalog.ProductPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	p, err := h.Catalog.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	soft, err := h.Catalog.DeleteProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deactivated": soft})
}

// uploadImage expects multipart field file and, optionally, product_id. With
// a product_id the product's image_url is pointed at the new file and the
// previous upload is removed.
func (h *AdminHandler) uploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, uploads.MaxImageSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: invalid upload: %v", orders.ErrValidation, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var product *catalog.Product
	if v := r.FormValue("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, h.Log, fmt.Errorf("%w: invalid product_id", orders.ErrValidation))
			return
		}
		if product, err = h.Catalog.GetProduct(r.Context(), id, true); err != nil {
			writeError(w, r, h.Log, err)
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: file is required", orders.ErrValidation))
		return
	}
	defer file.Close()

	img, err := h.Images.SaveProductImage(file, header.Filename)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if product == nil {
		writeJSON(w, http.StatusCreated, map[string]any{"filename": img.Name, "url": img.URL})
		return
	}

	previous := product.ImageURL
	updated, err := h.Catalog.UpdateProduct(r.Context(), product.ID, catalog.ProductPatch{ImageURL: &img.URL})
	if err != nil {
		if rerr := h.Images.Remove(img.URL); rerr != nil {
			h.Log.Warn("remove orphan image", "url", img.URL, "err", rerr)
		}
		writeError(w, r, h.Log, err)
		return
	}
	if strings.HasPrefix(previous, uploads.ImageURLPrefix) {
		if err := h.Images.Remove(previous); err != nil {
			h.Log.Warn("remove replaced image", "url", previous, "err", err)
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"filename": img.Name, "url": img.URL, "product": updated})
}

func (h *AdminHandler) deleteImage(w http.ResponseWriter, r *http.Request) {
	if err := h.Images.RemoveProductImage(chi.URLParam(r, "filename")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cs})
}

func (h *AdminHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in catalog.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	c, err := h.Catalog.CreateCategory(r.Context(), in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *AdminHandler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var in catalog.CategoryInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	c, err := h.Catalog.UpdateCategory(r.Context(), id, in)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *AdminHandler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Catalog.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	list, err := h.Orders.ListOrders(r.Context(), orders.Status(r.URL.Query().Get("status")), limit)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *AdminHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req statusReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.SetOrderStatus(ctx, id, req.Status, req.DeclineReason)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	cacheStatus(ctx, h.Redis, h.Log, o)
	writeJSON(w, http.StatusOK, o)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	us, err := h.Users.ListCustomers(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": us})
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req activeReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if req.IsActive == nil {
		writeError(w, r, h.Log, fmt.Errorf("%w: is_active is required", orders.ErrValidation))
		return
	}
	u, err := h.Users.SetActive(r.Context(), id, *req.IsActive)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) resetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	var req passwordReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Users.ResetPassword(r.Context(), id, req.Password); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Reports.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// salesReport answers JSON by default and CSV with ?format=csv.
func (h *AdminHandler) salesReport(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	rg := reports.RangeFor(r.URL.Query().Get("period"), now())
	rep, err := h.Reports.Sales(r.Context(), rg)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf(`attachment; filename="sales_%s_%s.csv"`, rep.Period, rep.Start.Format("20060102")))
		if err := reports.WriteCSV(w, rep); err != nil {
			h.Log.Error("write report", "err", err)
		}
	default:
		writeError(w, r, h.Log, fmt.Errorf("%w: unsupported format %q", orders.ErrValidation, format))
	}
}
