package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_ListProducts(t *testing.T) {
	env := newTestEnv(t)
	for i := range 25 {
		env.product(fmt.Sprintf("Item %02d", i), "1.00", 1, true)
	}
	env.product("Hidden", "1.00", 1, false)

	tests := []struct {
		name  string
		query string
		want  int
		first string
	}{
		{"default limit", "", 10, "Item 24"},
		{"second page", "?page=2", 10, "Item 14"},
		{"last page", "?page=3", 5, "Item 04"},
		{"limit capped", "?limit=100", 20, "Item 24"},
		{"malformed paging", "?page=abc&limit=xyz", 10, "Item 24"},
		{"past the end", "?page=9", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/products"+tt.query, nil, nil)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			body := decode(t, w)
			assert.Equal(t, "success", body["status"])
			assert.Equal(t, "Products retrieved successfully", body["message"])
			data := body["data"].([]any)
			require.Len(t, data, tt.want)
			if tt.first != "" {
				assert.Equal(t, tt.first, data[0].(map[string]any)["name"])
			}
		})
	}
}

func TestAPI_SearchProducts(t *testing.T) {
	env := newTestEnv(t)
	env.product("Red Shoe", "10.00", 1, true)
	env.product("Blue Shoe", "25.00", 1, true)
	env.product("Red Hat", "40.00", 1, true)
	env.product("Red Scarf", "15.00", 1, false)

	tests := []struct {
		name    string
		query   string
		status  int
		message string
		want    []string
	}{
		{
			name:    "by name",
			query:   "?name=red",
			status:  http.StatusOK,
			message: "Products retrieved successfully",
			want:    []string{"Red Hat", "Red Shoe"},
		},
		{
			name:    "by price range",
			query:   "?minPrice=10&maxPrice=30",
			status:  http.StatusOK,
			message: "Products retrieved successfully",
			want:    []string{"Blue Shoe", "Red Shoe"},
		},
		{
			name:    "name and min price",
			query:   "?name=shoe&minPrice=20",
			status:  http.StatusOK,
			message: "Products retrieved successfully",
			want:    []string{"Blue Shoe"},
		},
		{
			name:    "non-numeric min price",
			query:   "?minPrice=cheap",
			status:  http.StatusBadRequest,
			message: "Invalid parameter: minPrice must be a number.",
		},
		{
			name:    "non-numeric max price",
			query:   "?maxPrice=lots",
			status:  http.StatusBadRequest,
			message: "Invalid parameter: maxPrice must be a number.",
		},
		{
			name:    "inverted range",
			query:   "?minPrice=50&maxPrice=10",
			status:  http.StatusBadRequest,
			message: "Invalid price range: minPrice cannot be greater than maxPrice.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/products/search"+tt.query, nil, nil)
			require.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.message, body["message"])
			if tt.status != http.StatusOK {
				assert.Equal(t, "error", body["status"])
				assert.Nil(t, body["data"])
				return
			}
			var names []string
			for _, p := range body["data"].([]any) {
				names = append(names, p.(map[string]any)["name"].(string))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestAPI_GetProduct(t *testing.T) {
	env := newTestEnv(t)
	p := env.product("Red Shoe", "10.50", 3, true)
	hidden := env.product("Hidden", "1.00", 1, false)

	w := env.do(http.MethodGet, "/api/products/"+itoa(p.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Product retrieved successfully", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "10.50", data["price"])
	assert.Equal(t, float64(3), data["stock"])

	for _, id := range []int64{hidden.ID, 999} {
		w := env.do(http.MethodGet, "/api/products/"+itoa(id), nil, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
		body := decode(t, w)
		assert.Equal(t, "error", body["status"])
		assert.Equal(t, "Product not found", body["message"])
	}
}
