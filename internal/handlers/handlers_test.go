package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/houseprice/internal/artifacts"
	"github.com/stwalsh4118/houseprice/internal/currency"
	apierrors "github.com/stwalsh4118/houseprice/internal/errors"
	"github.com/stwalsh4118/houseprice/internal/logger"
	"github.com/stwalsh4118/houseprice/internal/middleware"
	"github.com/stwalsh4118/houseprice/internal/models"
	"github.com/stwalsh4118/houseprice/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
	RegisterValidatorTagNames()
}

// MockPredictionService is a mock implementation of services.PredictionService
type MockPredictionService struct {
	mock.Mock
}

func (m *MockPredictionService) Estimate(ctx context.Context, house models.HouseFeatures) (*models.PredictionResult, error) {
	args := m.Called(ctx, house)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	result, ok := args.Get(0).(*models.PredictionResult)
	if !ok {
		return nil, args.Error(1)
	}
	return result, args.Error(1)
}

func (m *MockPredictionService) Locations() []string {
	return []string{"Whitefield", "Indiranagar"}
}

func (m *MockPredictionService) ModelInfo() services.ModelInfo {
	return services.ModelInfo{Version: "test-v1", Source: "file", LocationCount: 2}
}

// MockPinger is a mock implementation of database.Pinger
type MockPinger struct {
	err error
}

func (m *MockPinger) Ping(ctx context.Context) error {
	return m.err
}

// setupTestRouter registers every route against the given service.
func setupTestRouter(t *testing.T, service services.PredictionService, db *MockPinger) *gin.Engine {
	t.Helper()

	log := logger.New("test")
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))

	tmpl, err := LoadTemplates()
	require.NoError(t, err)
	router.SetHTMLTemplate(tmpl)

	health := &HealthHandler{service: service, startTime: time.Now().Add(-time.Hour), env: "test"}
	if db != nil {
		health.db = db
	}
	predictions := NewPredictionHandler(service)
	page := NewPageHandler(service)

	router.GET("/", page.Index)
	router.POST("/predict", page.Predict)
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", health.Info)
		v1.GET("/locations", predictions.Locations)
		v1.POST("/predictions", predictions.Predict)
	}

	return router
}

// newRealService builds a service over a linear model that returns
// exactly intercept lakh for any house in Indiranagar and intercept-100 elsewhere.
func newRealService(t *testing.T, intercept float64) services.PredictionService {
	t.Helper()

	formatter, err := currency.New(currency.Config{Symbol: currency.DefaultSymbol})
	require.NoError(t, err)

	model := &artifacts.LinearRegression{Coefficients: []float64{0, 0, 0, -100, 0}, Intercept: intercept}
	bundle, err := artifacts.NewBundle(model, models.ParameterDescriptor{
		Columns: []string{"Whitefield", "Indiranagar"},
		Prefix:  3,
	}, artifacts.SourceFile, "real-v1")
	require.NoError(t, err)

	return services.NewPredictionService(bundle, formatter, logger.New("test"))
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func postForm(router *gin.Engine, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPredict_Success(t *testing.T) {
	service := new(MockPredictionService)
	router := setupTestRouter(t, service, nil)

	house := models.HouseFeatures{Location: "Indiranagar", TotalSqFeet: 1200, Bathrooms: 2, Bedrooms: 3}
	service.On("Estimate", mock.Anything, house).Return(&models.PredictionResult{
		Price:          4550000,
		FormattedPrice: "₹4,550,000.00",
		Message:        "The predicted price of the house is ₹4,550,000.00",
		ModelVersion:   "test-v1",
	}, nil)

	w := postJSON(router, "/api/v1/predictions",
		`{"total_sq_feet":1200,"bathrooms":2,"bedrooms":3,"location":"Indiranagar"}`)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp PredictionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4550000.0, resp.Price)
	assert.Equal(t, "₹4,550,000.00", resp.FormattedPrice)
	assert.Equal(t, "test-v1", resp.ModelVersion)
	service.AssertExpectations(t)
}

func TestPredict_NoEstimate(t *testing.T) {
	service := new(MockPredictionService)
	router := setupTestRouter(t, service, nil)

	service.On("Estimate", mock.Anything, mock.Anything).Return(nil, services.ErrNoEstimate)

	w := postJSON(router, "/api/v1/predictions",
		`{"total_sq_feet":300,"bathrooms":1,"bedrooms":1,"location":"Whitefield"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, apierrors.ErrNoEstimate, resp.Error.Code)
	assert.Equal(t, services.NoEstimateMessage, resp.Error.Message)
	assert.NotEmpty(t, resp.Error.RequestID)
}

func TestPredict_UnknownLocation(t *testing.T) {
	service := new(MockPredictionService)
	router := setupTestRouter(t, service, nil)

	service.On("Estimate", mock.Anything, mock.Anything).
		Return(nil, errors.Join(services.ErrUnknownLocation, errors.New("Atlantis")))

	w := postJSON(router, "/api/v1/predictions",
		`{"total_sq_feet":1200,"bathrooms":2,"bedrooms":3,"location":"Atlantis"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, apierrors.ErrBadRequest, resp.Error.Code)
	assert.Equal(t, "Atlantis", resp.Error.Details["location"])
}

func TestPredict_InternalError(t *testing.T) {
	service := new(MockPredictionService)
	router := setupTestRouter(t, service, nil)

	service.On("Estimate", mock.Anything, mock.Anything).Return(nil, services.ErrEmptyPrediction)

	w := postJSON(router, "/api/v1/predictions",
		`{"total_sq_feet":1200,"bathrooms":2,"bedrooms":3,"location":"Whitefield"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), apierrors.ErrInternalServer)
}

func TestPredict_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		fields []string
	}{
		{
			name:   "area below minimum",
			body:   `{"total_sq_feet":299,"bathrooms":2,"bedrooms":3,"location":"Whitefield"}`,
			fields: []string{"total_sq_feet"},
		},
		{
			name:   "area above maximum",
			body:   `{"total_sq_feet":100001,"bathrooms":2,"bedrooms":3,"location":"Whitefield"}`,
			fields: []string{"total_sq_feet"},
		},
		{
			name:   "too many rooms",
			body:   `{"total_sq_feet":1200,"bathrooms":21,"bedrooms":30,"location":"Whitefield"}`,
			fields: []string{"bathrooms", "bedrooms"},
		},
		{
			name:   "missing location",
			body:   `{"total_sq_feet":1200,"bathrooms":2,"bedrooms":3}`,
			fields: []string{"location"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockPredictionService)
			router := setupTestRouter(t, service, nil)

			w := postJSON(router, "/api/v1/predictions", tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp apierrors.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, apierrors.ErrValidation, resp.Error.Code)
			for _, f := range tt.fields {
				assert.Contains(t, resp.Error.Details, f)
			}
			service.AssertNotCalled(t, "Estimate", mock.Anything, mock.Anything)
		})
	}
}

func TestPredict_MalformedBody(t *testing.T) {
	service := new(MockPredictionService)
	router := setupTestRouter(t, service, nil)

	w := postJSON(router, "/api/v1/predictions", `{"total_sq_feet":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), apierrors.ErrBadRequest)
}

func TestPredict_EndToEnd(t *testing.T) {
	t.Run("raw output 45.5 is formatted with separators", func(t *testing.T) {
		router := setupTestRouter(t, newRealService(t, 45.5), nil)

		w := postJSON(router, "/api/v1/predictions",
			`{"total_sq_feet":1200,"bathrooms":2,"bedrooms":3,"location":"Indiranagar"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp PredictionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.InDelta(t, 4550000.0, resp.Price, 1e-6)
		assert.Contains(t, resp.Message, "4,550,000.00")
	})

	t.Run("raw output 0 is no estimate", func(t *testing.T) {
		router := setupTestRouter(t, newRealService(t, 0), nil)

		w := postJSON(router, "/api/v1/predictions",
			`{"total_sq_feet":1200,"bathrooms":2,"bedrooms":3,"location":"Indiranagar"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.NotContains(t, w.Body.String(), "₹0.00")
	})
}

func TestLocations(t *testing.T) {
	router := setupTestRouter(t, new(MockPredictionService), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/locations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp LocationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Whitefield", "Indiranagar"}, resp.Locations)
	assert.Equal(t, 2, resp.Count)
}

func TestPage_Index(t *testing.T) {
	router := setupTestRouter(t, new(MockPredictionService), nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<title>"+PageTitle+"</title>")
	assert.Contains(t, body, PageSubtitle)
	assert.Contains(t, body, `min="300" max="100000"`)
	assert.Contains(t, body, `min="1" max="20"`)
	assert.Contains(t, body, `<option value="Whitefield" selected>Whitefield</option>`)
	assert.Contains(t, body, `<option value="Indiranagar">Indiranagar</option>`)
	assert.Contains(t, body, "Predict</button>")
	assert.NotContains(t, body, `class="banner`)
}

func TestPage_Predict(t *testing.T) {
	form := url.Values{
		"total_sq_feet": {"1200"},
		"bathrooms":     {"2"},
		"bedrooms":      {"3"},
		"location":      {"Indiranagar"},
	}

	t.Run("success banner", func(t *testing.T) {
		router := setupTestRouter(t, newRealService(t, 45.5), nil)

		w := postForm(router, "/predict", form)

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "The predicted price of the house is ₹4,550,000.00")
		assert.Contains(t, body, `<option value="Indiranagar" selected>`)
		assert.Contains(t, body, `value="1200"`)
	})

	t.Run("no estimate banner", func(t *testing.T) {
		router := setupTestRouter(t, newRealService(t, 0), nil)

		w := postForm(router, "/predict", form)

		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, services.NoEstimateMessage)
		assert.NotContains(t, body, "₹0.00")
		assert.NotContains(t, body, "banner success")
	})

	t.Run("out of range input", func(t *testing.T) {
		service := new(MockPredictionService)
		router := setupTestRouter(t, service, nil)

		bad := url.Values{
			"total_sq_feet": {"100"},
			"bathrooms":     {"2"},
			"bedrooms":      {"3"},
			"location":      {"Whitefield"},
		}
		w := postForm(router, "/predict", bad)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Please check the following fields: total_sq_feet")
		service.AssertNotCalled(t, "Estimate", mock.Anything, mock.Anything)
	})

	t.Run("non numeric input", func(t *testing.T) {
		router := setupTestRouter(t, new(MockPredictionService), nil)

		bad := url.Values{
			"total_sq_feet": {"big"},
			"bathrooms":     {"2"},
			"bedrooms":      {"3"},
			"location":      {"Whitefield"},
		}
		w := postForm(router, "/predict", bad)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Please enter valid numbers for every field")
	})

	t.Run("unknown location", func(t *testing.T) {
		router := setupTestRouter(t, newRealService(t, 45.5), nil)

		bad := url.Values{
			"total_sq_feet": {"1200"},
			"bathrooms":     {"2"},
			"bedrooms":      {"3"},
			"location":      {"Atlantis"},
		}
		w := postForm(router, "/predict", bad)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Please choose one of the listed locations")
	})
}
