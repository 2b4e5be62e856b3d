package httpserver

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shopcart/internal/domain"
	"github.com/Skotchmaster/shopcart/internal/transport"
)

func TestValidator_FieldNames(t *testing.T) {
	t.Parallel()

	v := NewValidator()
	tests := []struct {
		name   string
		in     any
		fields []string
	}{
		{"valid", &transport.AddItemRequest{ProductID: 1, Quantity: 1}, nil},
		{"add item", &transport.AddItemRequest{Quantity: 200}, []string{"productId", "quantity"}},
		{"bulk entry", &transport.BulkUpdateRequest{Items: []transport.BulkUpdateEntry{
			{CartItemID: 1, Quantity: 1},
			{CartItemID: 0, Quantity: 1},
		}}, []string{"items[1].cartItemId"}},
		{"empty bulk remove", &transport.BulkRemoveRequest{CartItemIDs: []uint{}}, []string{"cartItemIds"}},
		{"zero id in list", &transport.BulkRemoveRequest{CartItemIDs: []uint{3, 0}}, []string{"cartItemIds[1]"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.fields == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
			var got []string
			for _, d := range domain.ErrorDetails(err) {
				got = append(got, d.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestToDomain(t *testing.T) {
	t.Parallel()

	err := toDomain(&domain.Error{Code: domain.ECONFLICT, Message: "x"})
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	err = toDomain(assertHTTPError(403))
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
	assert.Equal(t, "Forbidden", domain.ErrorMessage(err))
}

func TestCodeStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]int{
		domain.EINVALID:      http.StatusBadRequest,
		domain.EUNAUTHORIZED: http.StatusUnauthorized,
		domain.EFORBIDDEN:    http.StatusForbidden,
		domain.ENOTFOUND:     http.StatusNotFound,
		domain.ECONFLICT:     http.StatusConflict,
		domain.EUNAVAILABLE:  http.StatusServiceUnavailable,
		domain.EINTERNAL:     http.StatusInternalServerError,
		"mystery":            http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, codeStatus(code), code)
	}
}
