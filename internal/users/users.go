package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrBadCredentials covers unknown username, wrong password and inactive
// accounts alike, so login does not reveal which one it was.
var ErrBadCredentials = errors.New("invalid username or password")

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	IsActive  bool      `json:"is_active"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
	// OrderCount is filled only in admin listings.
	OrderCount int `json:"order_count,omitempty"`
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

func (in RegisterInput) validate() error {
	if n := len(in.Username); n < 3 || n > 80 {
		return fmt.Errorf("%w: username must be 3-80 characters", orders.ErrValidation)
	}
	if !validEmail(in.Email) {
		return fmt.Errorf("%w: email is not valid", orders.ErrValidation)
	}
	return validatePassword(in.Password)
}

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

func validatePassword(p string) error {
	if len(p) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", orders.ErrValidation)
	}
	if len(p) > 72 {
		return fmt.Errorf("%w: password must be at most 72 bytes", orders.ErrValidation)
	}
	return nil
}

func HashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

type Repo struct{ DB *pgxpool.Pool }

const userColumns = `id, username, email, first_name, last_name, COALESCE(address, ''), COALESCE(phone, ''),
	is_active, is_admin, created_at`

func scanUser(row pgx.Row, extra ...any) (*User, error) {
	var u User
	dest := append([]any{&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.Address, &u.Phone,
		&u.IsActive, &u.IsAdmin, &u.CreatedAt}, extra...)
	err := row.Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scan user: %w", orders.ErrStorage, err)
	}
	return &u, nil
}

func (r *Repo) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", orders.ErrStorage, err)
	}
	u, err := scanUser(r.DB.QueryRow(ctx, `
		INSERT INTO users(username, email, password_hash, first_name, last_name, address, phone)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING `+userColumns,
		in.Username, in.Email, hash, in.FirstName, in.LastName, in.Address, in.Phone))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: username or email already registered", orders.ErrConflict)
		}
		return nil, err
	}
	return u, nil
}

func (r *Repo) Login(ctx context.Context, username, password string) (*User, error) {
	var hash string
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE username=$1`,
		strings.TrimSpace(username)), &hash)
	if errors.Is(err, orders.ErrNotFound) {
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !CheckPassword(hash, password) {
		return nil, ErrBadCredentials
	}
	return u, nil
}

// Field names a unique user attribute that can be checked for availability.
type Field string

const (
	FieldUsername Field = "username"
	FieldEmail    Field = "email"
)

// Exists reports whether a user already holds value. Emails are compared
// in the normalised form Register stores.
func (r *Repo) Exists(ctx context.Context, field Field, value string) (bool, error) {
	var sql string
	switch field {
	case FieldUsername:
		value = strings.TrimSpace(value)
		sql = `SELECT EXISTS(SELECT 1 FROM users WHERE username=$1)`
	case FieldEmail:
		value = strings.ToLower(strings.TrimSpace(value))
		if !validEmail(value) {
			return false, fmt.Errorf("%w: email is not valid", orders.ErrValidation)
		}
		sql = `SELECT EXISTS(SELECT 1 FROM users WHERE email=$1)`
	default:
		return false, fmt.Errorf("%w: unknown field %q", orders.ErrValidation, field)
	}
	if value == "" {
		return false, fmt.Errorf("%w: %s is required", orders.ErrValidation, field)
	}
	var taken bool
	if err := r.DB.QueryRow(ctx, sql, value).Scan(&taken); err != nil {
		return false, fmt.Errorf("%w: check %s: %v", orders.ErrStorage, field, err)
	}
	return taken, nil
}

func (r *Repo) Get(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.DB.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

// ListCustomers returns non-admin users with their order counts.
func (r *Repo) ListCustomers(ctx context.Context) ([]User, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+userColumns+`, (SELECT COUNT(*) FROM orders o WHERE o.user_id = users.id)
		FROM users WHERE NOT is_admin ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: list users: %v", orders.ErrStorage, err)
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var n int
		u, err := scanUser(rows, &n)
		if err != nil {
			return nil, err
		}
		u.OrderCount = n
		out = append(out, *u)
	}
	return out, rows.Err()
}

// SetActive toggles a customer account. Admin accounts cannot be changed.
func (r *Repo) SetActive(ctx context.Context, id int64, active bool) (*User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `
		UPDATE users SET is_active=$2, updated_at=now() WHERE id=$1 AND NOT is_admin
		RETURNING `+userColumns, id, active))
	if errors.Is(err, orders.ErrNotFound) {
		return nil, r.adminOrMissing(ctx, id)
	}
	return u, err
}

func (r *Repo) ResetPassword(ctx context.Context, id int64, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: hash password: %v", orders.ErrStorage, err)
	}
	ct, err := r.DB.Exec(ctx, `UPDATE users SET password_hash=$2, updated_at=now() WHERE id=$1 AND NOT is_admin`, id, hash)
	if err != nil {
		return fmt.Errorf("%w: reset password: %v", orders.ErrStorage, err)
	}
	if ct.RowsAffected() == 0 {
		return r.adminOrMissing(ctx, id)
	}
	return nil
}

func (r *Repo) adminOrMissing(ctx context.Context, id int64) error {
	u, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.IsAdmin {
		return fmt.Errorf("%w: admin accounts cannot be modified", orders.ErrConflict)
	}
	return orders.ErrNotFound
}
