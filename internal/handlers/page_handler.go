package handlers

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stwalsh4118/houseprice/internal/middleware"
	"github.com/stwalsh4118/houseprice/internal/services"
)

// Page metadata.
const (
	PageTitle    = "Bengaluru House Price Prediction"
	PageSubtitle = "Predict the price of a house in Bengaluru using Machine Learning"

	pageTemplate = "index.html"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadTemplates parses the embedded page templates for router.SetHTMLTemplate.
func LoadTemplates() (*template.Template, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}
	return tmpl, nil
}

// Bounds describes the accepted range of a numeric input.
type Bounds struct {
	Min int
	Max int
}

// PageView is the data rendered by the prediction page.
type PageView struct {
	Title     string
	Subtitle  string
	Locations []string
	Form      PredictionRequest
	Area      Bounds
	Rooms     Bounds
	Success   string
	Error     string
}

// PageHandler serves the single-page prediction form.
type PageHandler struct {
	service services.PredictionService
}

// NewPageHandler creates a new PageHandler instance.
func NewPageHandler(service services.PredictionService) *PageHandler {
	return &PageHandler{
		service: service,
	}
}

func (h *PageHandler) view(form PredictionRequest) PageView {
	return PageView{
		Title:     PageTitle,
		Subtitle:  PageSubtitle,
		Locations: h.service.Locations(),
		Form:      form,
		Area:      Bounds{Min: services.MinTotalSqFeet, Max: services.MaxTotalSqFeet},
		Rooms:     Bounds{Min: services.MinRooms, Max: services.MaxRooms},
	}
}

// defaultForm mirrors the initial widget values: every input at its minimum
// and the first location selected.
func (h *PageHandler) defaultForm() PredictionRequest {
	form := PredictionRequest{
		TotalSqFeet: services.MinTotalSqFeet,
		Bathrooms:   services.MinRooms,
		Bedrooms:    services.MinRooms,
	}
	if locs := h.service.Locations(); len(locs) > 0 {
		form.Location = locs[0]
	}
	return form
}

// Index handles GET /.
func (h *PageHandler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, pageTemplate, h.view(h.defaultForm()))
}

// Predict handles POST /predict and re-renders the page with the outcome.
func (h *PageHandler) Predict(c *gin.Context) {
	var form PredictionRequest
	if err := c.ShouldBind(&form); err != nil {
		v := h.view(form)
		v.Error = describeBindError(err)
		c.HTML(http.StatusBadRequest, pageTemplate, v)
		return
	}

	v := h.view(form)

	result, err := h.service.Estimate(c.Request.Context(), form.houseFeatures())
	switch {
	case err == nil:
		v.Success = result.Message
		c.HTML(http.StatusOK, pageTemplate, v)
	case errors.Is(err, services.ErrNoEstimate):
		v.Error = services.NoEstimateMessage
		c.HTML(http.StatusOK, pageTemplate, v)
	case errors.Is(err, services.ErrUnknownLocation):
		v.Error = "Please choose one of the listed locations"
		c.HTML(http.StatusBadRequest, pageTemplate, v)
	default:
		if log := middleware.GetLogger(c); log != nil {
			log.Error("Page prediction failed", err, nil)
		}
		v.Error = "Something went wrong while predicting the price. Please try again."
		c.HTML(http.StatusInternalServerError, pageTemplate, v)
	}
}

// describeBindError turns binding failures into one line for the page banner.
func describeBindError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return "Please enter valid numbers for every field"
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fe.Field())
	}
	sort.Strings(fields)
	return "Please check the following fields: " + strings.Join(fields, ", ")
}
