package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/stwalsh4118/houseprice/internal/errors"
	"github.com/stwalsh4118/houseprice/internal/middleware"
	"github.com/stwalsh4118/houseprice/internal/models"
	"github.com/stwalsh4118/houseprice/internal/services"
)

// PredictionHandler handles the prediction JSON API.
type PredictionHandler struct {
	service services.PredictionService
}

// NewPredictionHandler creates a new PredictionHandler instance.
func NewPredictionHandler(service services.PredictionService) *PredictionHandler {
	return &PredictionHandler{
		service: service,
	}
}

// PredictionRequest carries the four inputs of the prediction form. The
// same struct binds JSON bodies and url-encoded form posts.
type PredictionRequest struct {
	Location    string  `json:"location" form:"location" binding:"required"`
	TotalSqFeet float64 `json:"total_sq_feet" form:"total_sq_feet" binding:"required,min=300,max=100000"`
	Bathrooms   int     `json:"bathrooms" form:"bathrooms" binding:"required,min=1,max=20"`
	Bedrooms    int     `json:"bedrooms" form:"bedrooms" binding:"required,min=1,max=20"`
}

func (r PredictionRequest) houseFeatures() models.HouseFeatures {
	return models.HouseFeatures{
		Location:    r.Location,
		TotalSqFeet: r.TotalSqFeet,
		Bathrooms:   float64(r.Bathrooms),
		Bedrooms:    float64(r.Bedrooms),
	}
}

// PredictionResponse is returned for a successful estimate.
type PredictionResponse struct {
	Price          float64 `json:"price"`
	FormattedPrice string  `json:"formatted_price"`
	Message        string  `json:"message"`
	ModelVersion   string  `json:"model_version"`
}

// LocationsResponse lists the selectable locations.
type LocationsResponse struct {
	Locations []string `json:"locations"`
	Count     int      `json:"count"`
}

var registerTagNames sync.Once

// RegisterValidatorTagNames makes gin's validator report fields by their
// JSON name (falling back to the form name) instead of the Go field name.
func RegisterValidatorTagNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}

// Locations handles GET /api/v1/locations.
func (h *PredictionHandler) Locations(c *gin.Context) {
	locs := h.service.Locations()
	c.JSON(http.StatusOK, LocationsResponse{
		Locations: locs,
		Count:     len(locs),
	})
}

// Predict handles POST /api/v1/predictions.
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Processing prediction request", map[string]interface{}{
			"location":      req.Location,
			"total_sq_feet": req.TotalSqFeet,
			"bathrooms":     req.Bathrooms,
			"bedrooms":      req.Bedrooms,
		})
	}

	result, err := h.service.Estimate(c.Request.Context(), req.houseFeatures())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownLocation):
			apierrors.BadRequest(c, "Unknown location", map[string]interface{}{
				"location": req.Location,
			})
		case errors.Is(err, services.ErrNoEstimate):
			apierrors.NoEstimate(c, services.NoEstimateMessage)
		default:
			apierrors.InternalServerError(c, "Failed to compute prediction", err)
		}
		return
	}

	c.JSON(http.StatusOK, PredictionResponse{
		Price:          result.Price,
		FormattedPrice: result.FormattedPrice,
		Message:        result.Message,
		ModelVersion:   result.ModelVersion,
	})
}
