package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"commerce-core/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testCatalogEntry(id string, available int) model.CatalogEntry {
	return model.CatalogEntry{
		Product:           model.Product{ID: id, Name: "Kettle " + id, Category: "kitchen", UnitPrice: 4500},
		AvailableQuantity: available,
		InStock:           available > 0,
	}
}

func TestProductHandler_List(t *testing.T) {
	entries := []model.CatalogEntry{testCatalogEntry("P001", 3), testCatalogEntry("P002", 0)}

	tests := []struct {
		name           string
		query          string
		filter         *model.CatalogFilter
		serviceErr     error
		expectedStatus int
	}{
		{
			name:           "No parameters",
			filter:         &model.CatalogFilter{},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Category stock filter and page",
			query:          "?category=kitchen&inStock=true&limit=5&offset=10",
			filter:         &model.CatalogFilter{Category: "kitchen", InStockOnly: true, Limit: 5, Offset: 10},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "inStock accepts 0",
			query:          "?inStock=0",
			filter:         &model.CatalogFilter{},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid inStock",
			query:          "?inStock=maybe",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid limit",
			query:          "?limit=invalid",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Invalid offset",
			query:          "?offset=invalid",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Service error",
			filter:         &model.CatalogFilter{},
			serviceErr:     errors.New("database error"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			handler := NewProductHandler(mockService, zerolog.Nop())

			if tt.filter != nil {
				if tt.serviceErr != nil {
					mockService.On("List", mock.Anything, *tt.filter).Return(nil, tt.serviceErr)
				} else {
					mockService.On("List", mock.Anything, *tt.filter).Return(entries, nil)
				}
			}

			w := httptest.NewRecorder()
			handler.List(w, httptest.NewRequest(http.MethodGet, "/api/products"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				var got []model.CatalogEntry
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, entries, got)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestProductHandler_List_EntryShape(t *testing.T) {
	mockService := new(MockProductService)
	handler := NewProductHandler(mockService, zerolog.Nop())
	mockService.On("List", mock.Anything, model.CatalogFilter{}).
		Return([]model.CatalogEntry{testCatalogEntry("P001", 2)}, nil)

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var raw []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "P001", raw[0]["id"])
	assert.EqualValues(t, 4500, raw[0]["unitPrice"])
	assert.EqualValues(t, 2, raw[0]["availableQuantity"])
	assert.Equal(t, true, raw[0]["inStock"])
}

func TestProductHandler_List_InternalErrorIsGeneric(t *testing.T) {
	mockService := new(MockProductService)
	handler := NewProductHandler(mockService, zerolog.Nop())
	mockService.On("List", mock.Anything, model.CatalogFilter{}).
		Return(nil, errors.New("pq: password authentication failed"))

	w := httptest.NewRecorder()
	handler.List(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, model.ErrCodeInternalError, body.Error)
	assert.NotContains(t, body.Message, "password")
}

func TestProductHandler_Get(t *testing.T) {
	entry := testCatalogEntry("P001", 0)

	tests := []struct {
		name           string
		productID      string
		mockReturn     *model.CatalogEntry
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Sold out product is still served",
			productID:      "P001",
			mockReturn:     &entry,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Product not found",
			productID:      "P999",
			mockError:      model.ErrProductNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   model.ErrCodeProductNotFound,
		},
		{
			name:           "Stock read timed out",
			productID:      "P001",
			mockError:      model.ErrTimeout,
			expectedStatus: http.StatusGatewayTimeout,
			expectedCode:   model.ErrCodeTimeout,
		},
		{
			name:           "Repository failure",
			productID:      "P001",
			mockError:      errors.New("connection reset"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   model.ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			handler := NewProductHandler(mockService, zerolog.Nop())
			mockService.On("Get", mock.Anything, tt.productID).Return(tt.mockReturn, tt.mockError)

			req := withRoute(httptest.NewRequest(http.MethodGet, "/api/products/"+tt.productID, nil),
				"", map[string]string{"productID": tt.productID})
			w := httptest.NewRecorder()

			handler.Get(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				var body model.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, tt.expectedCode, body.Error)
			} else {
				var got model.CatalogEntry
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, int64(4500), got.UnitPrice)
				assert.False(t, got.InStock)
			}
			mockService.AssertExpectations(t)
		})
	}
}
