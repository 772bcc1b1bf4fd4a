package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/google/uuid"
)

const (
	MaxProofSize = 5 << 20
	MaxImageSize = 5 << 20
	proofDir     = "payment_proofs"
	imageDir     = "product_images"
	URLPrefix    = "/static/uploads/"

	ImageURLPrefix = URLPrefix + imageDir + "/"
)

var (
	proofExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".pdf": true}
	imageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
)

// Image is a stored product image. Name is the on-disk file name, the
// handle used to delete it again.
type Image struct {
	Name string `json:"filename"`
	URL  string `json:"url"`
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store keeps uploaded files under Dir; they are served from URLPrefix.
type Store struct {
	Dir string
}

// SanitizeName keeps the base name only and replaces anything outside
// [A-Za-z0-9._-].
func SanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "file"
	}
	return name
}

// SaveProof writes a payment proof and returns where it can be fetched.
func (s *Store) SaveProof(r io.Reader, filename string) (orders.PaymentProof, error) {
	stored, err := s.save(r, proofDir, filename, proofExt, MaxProofSize)
	if err != nil {
		return orders.PaymentProof{}, err
	}
	return orders.PaymentProof{URL: URLPrefix + path.Join(proofDir, stored), Filename: filename}, nil
}

// SaveProductImage stores an image as uploaded; no resizing is done.
func (s *Store) SaveProductImage(r io.Reader, filename string) (Image, error) {
	stored, err := s.save(r, imageDir, filename, imageExt, MaxImageSize)
	if err != nil {
		return Image{}, err
	}
	return Image{Name: stored, URL: URLPrefix + path.Join(imageDir, stored)}, nil
}

// RemoveProductImage deletes an image by the name SaveProductImage returned.
func (s *Store) RemoveProductImage(name string) error {
	if name != SanitizeName(name) {
		return fmt.Errorf("%w: invalid image name", orders.ErrValidation)
	}
	err := os.Remove(filepath.Join(s.Dir, imageDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: image %s", orders.ErrNotFound, name)
	}
	if err != nil {
		return fmt.Errorf("%w: remove image: %v", orders.ErrStorage, err)
	}
	return nil
}

// save writes r under sub as <16 hex>_<sanitised name>. Reading stops one
// byte past max so oversized uploads are rejected without buffering them.
func (s *Store) save(r io.Reader, sub, filename string, allowed map[string]bool, max int64) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowed[ext] {
		return "", fmt.Errorf("%w: file type %q not allowed", orders.ErrValidation, ext)
	}

	dir := filepath.Join(s.Dir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create upload dir: %v", orders.ErrStorage, err)
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	stored := token + "_" + SanitizeName(filename)
	full := filepath.Join(dir, stored)

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: create file: %v", orders.ErrStorage, err)
	}
	n, err := io.Copy(f, io.LimitReader(r, max+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > max {
		err = fmt.Errorf("%w: file larger than %d bytes", orders.ErrValidation, max)
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("%w: file is empty", orders.ErrValidation)
	}
	if err != nil {
		_ = os.Remove(full)
		if errors.Is(err, orders.ErrValidation) {
			return "", err
		}
		return "", fmt.Errorf("%w: write file: %v", orders.ErrStorage, err)
	}
	return stored, nil
}

// Remove deletes a file by the URL SaveProof or SaveProductImage returned.
// Missing files are not an error.
func (s *Store) Remove(url string) error {
	rel := strings.TrimPrefix(url, URLPrefix)
	sub := path.Dir(rel)
	if rel == url || (sub != proofDir && sub != imageDir) {
		return fmt.Errorf("%w: not an upload url", orders.ErrValidation)
	}
	err := os.Remove(filepath.Join(s.Dir, sub, path.Base(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove file: %v", orders.ErrStorage, err)
	}
	return nil
}
