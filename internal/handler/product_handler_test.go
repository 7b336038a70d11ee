package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"product-catalog/internal/model"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) Register(ctx context.Context, form model.ProductForm) (*model.Product, error) {
	args := m.Called(ctx, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) Find(ctx context.Context, id int64) (*model.ProductView, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProductView), args.Error(1)
}

func (m *MockProductService) ListAll(ctx context.Context) ([]model.ProductView, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProductView), args.Error(1)
}

func (m *MockProductService) Search(ctx context.Context, fragment string) ([]model.ProductView, error) {
	args := m.Called(ctx, fragment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProductView), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, id int64, form model.ProductForm) (*model.Product, error) {
	args := m.Called(ctx, id, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Product), args.Error(1)
}

func (m *MockProductService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductService) AttachImage(ctx context.Context, id int64, data []byte, originalFileName string) (*model.ProductView, error) {
	args := m.Called(ctx, id, data, originalFileName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProductView), args.Error(1)
}

func (m *MockProductService) FetchImage(ctx context.Context, id int64, imagePath string) (*model.Image, error) {
	args := m.Called(ctx, id, imagePath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Image), args.Error(1)
}

const testMaxUpload = 64

// withURLParams attaches chi URL parameters to the request.
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, body io.Reader) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.NewDecoder(body).Decode(&resp))
	return resp
}

func multipartBody(t *testing.T, field, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestProductHandler_Register(t *testing.T) {
	logger := zerolog.Nop()
	form := model.ProductForm{Title: "shoes", Description: "running", Price: 3000}

	tests := []struct {
		name           string
		body           string
		mockReturn     *model.Product
		mockError      error
		expectService  bool
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "Success",
			body:           `{"title":"shoes","description":"running","price":3000}`,
			mockReturn:     &model.Product{ID: 1, Title: "shoes", Description: "running", Price: 3000, CreatedAt: time.Now()},
			expectService:  true,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Invalid JSON",
			body:           `{"title":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   model.ErrCodeInvalidJSON,
		},
		{
			name:           "Validation failure",
			body:           `{"title":"shoes","description":"running","price":3000}`,
			mockError:      model.NewValidationError("price must not be negative"),
			expectService:  true,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   string(model.KindValidation),
		},
		{
			name:           "Duplicate title",
			body:           `{"title":"shoes","description":"running","price":3000}`,
			mockError:      model.NewTitleConflictError("shoes"),
			expectService:  true,
			expectedStatus: http.StatusConflict,
			expectedCode:   string(model.KindConflict),
		},
		{
			name:           "Unexpected error hides detail",
			body:           `{"title":"shoes","description":"running","price":3000}`,
			mockError:      errors.New("connection refused"),
			expectService:  true,
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   string(model.KindUnexpected),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			handler := NewProductHandler(mockService, testMaxUpload, logger)

			if tt.expectService {
				mockService.On("Register", mock.Anything, form).Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			handler.Register(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				resp := decodeError(t, w.Body)
				assert.Equal(t, tt.expectedCode, resp.Error)
				assert.NotContains(t, resp.Message, "connection refused")
			} else {
				var product model.Product
				require.NoError(t, json.NewDecoder(w.Body).Decode(&product))
				assert.Equal(t, int64(1), product.ID)
			}

			mockService.AssertExpectations(t)
		})
	}
}

func TestProductHandler_List(t *testing.T) {
	logger := zerolog.Nop()
	views := []model.ProductView{{ID: 2, Title: "boots"}, {ID: 1, Title: "shoes"}}

	tests := []struct {
		name     string
		query    string
		fragment string
	}{
		{name: "No title lists everything", query: "", fragment: ""},
		{name: "Title searches", query: "?title=sho", fragment: "sho"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			handler := NewProductHandler(mockService, testMaxUpload, logger)
			mockService.On("Search", mock.Anything, tt.fragment).Return(views, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/products"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.List(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			var got []model.ProductView
			require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
			assert.Len(t, got, 2)
			mockService.AssertExpectations(t)
		})
	}

	t.Run("Empty catalogue is an empty array", func(t *testing.T) {
		mockService := new(MockProductService)
		handler := NewProductHandler(mockService, testMaxUpload, logger)
		mockService.On("Search", mock.Anything, "").Return([]model.ProductView{}, nil)

		w := httptest.NewRecorder()
		handler.List(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})
}

func TestProductHandler_GetByID(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name           string
		id             string
		mockReturn     *model.ProductView
		mockError      error
		expectService  bool
		expectedStatus int
	}{
		{
			name:           "Success",
			id:             "1",
			mockReturn:     &model.ProductView{ID: 1, Title: "shoes"},
			expectService:  true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Not found",
			id:             "9",
			mockError:      model.NewProductNotFoundError(9),
			expectService:  true,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Non-numeric id",
			id:             "abc",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Zero id",
			id:             "0",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			handler := NewProductHandler(mockService, testMaxUpload, logger)

			if tt.expectService {
				mockService.On("Find", mock.Anything, mock.AnythingOfType("int64")).
					Return(tt.mockReturn, tt.mockError)
			}

			req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/products/"+tt.id, nil),
				map[string]string{"id": tt.id})
			w := httptest.NewRecorder()

			handler.GetByID(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusBadRequest {
				assert.Equal(t, model.ErrCodeInvalidID, decodeError(t, w.Body).Error)
				mockService.AssertNotCalled(t, "Find", mock.Anything, mock.Anything)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestProductHandler_Update(t *testing.T) {
	logger := zerolog.Nop()
	form := model.ProductForm{Title: "boots", Description: "leather", Price: 3500}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockProductService)
		handler := NewProductHandler(mockService, testMaxUpload, logger)
		mockService.On("Update", mock.Anything, int64(1), form).
			Return(&model.Product{ID: 1, Title: "boots", Description: "leather", Price: 3500}, nil)

		req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/products/1",
			strings.NewReader(`{"title":"boots","description":"leather","price":3500}`)),
			map[string]string{"id": "1"})
		w := httptest.NewRecorder()

		handler.Update(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Conflict", func(t *testing.T) {
		mockService := new(MockProductService)
		handler := NewProductHandler(mockService, testMaxUpload, logger)
		mockService.On("Update", mock.Anything, int64(1), form).
			Return(nil, model.NewTitleConflictError("boots"))

		req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/products/1",
			strings.NewReader(`{"title":"boots","description":"leather","price":3500}`)),
			map[string]string{"id": "1"})
		w := httptest.NewRecorder()

		handler.Update(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decodeError(t, w.Body)
		assert.Equal(t, `a product titled "boots" already exists`, resp.Message)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		mockService := new(MockProductService)
		handler := NewProductHandler(mockService, testMaxUpload, logger)

		req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/products/1", strings.NewReader("nope")),
			map[string]string{"id": "1"})
		w := httptest.NewRecorder()

		handler.Update(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, model.ErrCodeInvalidJSON, decodeError(t, w.Body).Error)
		mockService.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestProductHandler_Delete(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name           string
		mockError      error
		expectedStatus int
	}{
		{name: "Success", expectedStatus: http.StatusNoContent},
		{name: "Not found", mockError: model.NewProductNotFoundError(1), expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			handler := NewProductHandler(mockService, testMaxUpload, logger)
			mockService.On("Delete", mock.Anything, int64(1)).Return(tt.mockError)

			req := withURLParams(httptest.NewRequest(http.MethodDelete, "/api/products/1", nil),
				map[string]string{"id": "1"})
			w := httptest.NewRecorder()

			handler.Delete(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestProductHandler_AttachImage(t *testing.T) {
	logger := zerolog.Nop()
	content := []byte("\x89PNG\r\n\x1a\n")

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockProductService)
		handler := NewProductHandler(mockService, testMaxUpload, logger)
		imagePath := "abc.png"
		mockService.On("AttachImage", mock.Anything, int64(1), content, "photo.png").
			Return(&model.ProductView{ID: 1, ImagePath: &imagePath}, nil)

		body, contentType := multipartBody(t, "file", "photo.png", content)
		req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/products/1/image", body),
			map[string]string{"id": "1"})
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		handler.AttachImage(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var view model.ProductView
		require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
		assert.Equal(t, "abc.png", *view.ImagePath)
		mockService.AssertExpectations(t)
	})

	t.Run("Unsupported extension", func(t *testing.T) {
		mockService := new(MockProductService)
		handler := NewProductHandler(mockService, testMaxUpload, logger)
		mockService.On("AttachImage", mock.Anything, int64(1), content, "photo.bmp").
			Return(nil, model.NewUnsupportedMediaTypeError(".bmp", []string{"png"}))

		body, contentType := multipartBody(t, "file", "photo.bmp", content)
		req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/products/1/image", body),
			map[string]string{"id": "1"})
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		handler.AttachImage(w, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.Equal(t, string(model.KindUnsupportedMediaType), decodeError(t, w.Body).Error)
	})

	t.Run("Missing file field", func(t *testing.T) {
		mockService := new(MockProductService)
		handler := NewProductHandler(mockService, testMaxUpload, logger)

		body, contentType := multipartBody(t, "other", "photo.png", content)
		req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/products/1/image", body),
			map[string]string{"id": "1"})
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		handler.AttachImage(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(model.KindValidation), decodeError(t, w.Body).Error)
		mockService.AssertNotCalled(t, "AttachImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Body over limit", func(t *testing.T) {
		mockService := new(MockProductService)
		handler := NewProductHandler(mockService, testMaxUpload, logger)

		body, contentType := multipartBody(t, "file", "photo.png", bytes.Repeat([]byte("x"), 2<<20+testMaxUpload))
		req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/products/1/image", body),
			map[string]string{"id": "1"})
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()

		handler.AttachImage(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, string(model.KindValidation), decodeError(t, w.Body).Error)
		mockService.AssertNotCalled(t, "AttachImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Not multipart", func(t *testing.T) {
		mockService := new(MockProductService)
		handler := NewProductHandler(mockService, testMaxUpload, logger)

		req := withURLParams(httptest.NewRequest(http.MethodPut, "/api/products/1/image", strings.NewReader("raw")),
			map[string]string{"id": "1"})
		w := httptest.NewRecorder()

		handler.AttachImage(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProductHandler_FetchImage(t *testing.T) {
	logger := zerolog.Nop()

	tests := []struct {
		name           string
		mockReturn     *model.Image
		mockError      error
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "Success",
			mockReturn:     &model.Image{Data: []byte("GIF89a"), ContentType: "image/gif"},
			expectedStatus: http.StatusOK,
			expectedType:   "image/gif",
		},
		{
			name:           "Not found",
			mockError:      model.NewImageNotFoundError(1),
			expectedStatus: http.StatusNotFound,
			expectedType:   "application/json",
		},
		{
			name:           "Read failure",
			mockError:      model.NewImageReadError(1, errors.New("disk gone")),
			expectedStatus: http.StatusInternalServerError,
			expectedType:   "application/json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockProductService)
			handler := NewProductHandler(mockService, testMaxUpload, logger)
			mockService.On("FetchImage", mock.Anything, int64(1), "abc.gif").Return(tt.mockReturn, tt.mockError)

			req := withURLParams(httptest.NewRequest(http.MethodGet, "/api/products/1/images/abc.gif", nil),
				map[string]string{"id": "1", "imagePath": "abc.gif"})
			w := httptest.NewRecorder()

			handler.FetchImage(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedType, w.Header().Get("Content-Type"))
			if tt.mockReturn != nil {
				assert.Equal(t, tt.mockReturn.Data, w.Body.Bytes())
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind     model.Kind
		expected int
	}{
		{model.KindValidation, http.StatusBadRequest},
		{model.KindConflict, http.StatusConflict},
		{model.KindNotFound, http.StatusNotFound},
		{model.KindUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{model.KindImageWrite, http.StatusInternalServerError},
		{model.KindImageRead, http.StatusInternalServerError},
		{model.KindUnexpected, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusFor(tt.kind))
		})
	}
}
