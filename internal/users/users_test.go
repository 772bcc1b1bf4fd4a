package users

import (
	"context"
	"testing"

	"github.com/ariefcatur/go-shop-backend.git/internal/orders"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterInputValidate(t *testing.T) {
	ok := RegisterInput{Username: "  budi ", Email: " Budi@Example.COM ", Password: "rahasia"}
	ok.normalize()
	require.NoError(t, ok.validate())
	assert.Equal(t, "budi", ok.Username)
	assert.Equal(t, "budi@example.com", ok.Email)

	cases := map[string]RegisterInput{
		"short username": {Username: "bu", Email: "b@example.com", Password: "rahasia"},
		"bad email":      {Username: "budi", Email: "not-an-email", Password: "rahasia"},
		"no tld":         {Username: "budi", Email: "budi@localhost", Password: "rahasia"},
		"named address":  {Username: "budi", Email: "Budi <b@example.com>", Password: "rahasia"},
		"short password": {Username: "budi", Email: "b@example.com", Password: "12345"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, in.validate(), orders.ErrValidation)
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("rahasia")
	require.NoError(t, err)

	assert.NotEqual(t, "rahasia", hash)
	assert.True(t, CheckPassword(hash, "rahasia"))
	assert.False(t, CheckPassword(hash, "rahasiA"))
	assert.False(t, CheckPassword("not-a-hash", "rahasia"))
}

func TestExistsRejectsBadInputBeforeQuerying(t *testing.T) {
	r := &Repo{} // no pool: these must fail before touching the database
	ctx := context.Background()

	_, err := r.Exists(ctx, FieldEmail, "budi@localhost")
	assert.ErrorIs(t, err, orders.ErrValidation)
	_, err = r.Exists(ctx, FieldUsername, "   ")
	assert.ErrorIs(t, err, orders.ErrValidation)
	_, err = r.Exists(ctx, Field("password_hash"), "x")
	assert.ErrorIs(t, err, orders.ErrValidation)
}
