package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stwalsh4118/houseprice/internal/artifacts"
	"github.com/stwalsh4118/houseprice/internal/logger"
	"github.com/stwalsh4118/houseprice/internal/models"
)

// Input bounds enforced by the form and the JSON API bindings.
const (
	MinTotalSqFeet = 300
	MaxTotalSqFeet = 100000
	MinRooms       = 1
	MaxRooms       = 20
)

// User-facing messages.
const (
	SuccessMessageFormat = "The predicted price of the house is %s"
	NoEstimateMessage    = "The location you have chosen does not have any houses with the entered features"
)

// Service-level errors
var (
	ErrUnknownLocation = errors.New("unknown location")
	ErrNoEstimate      = errors.New("no estimate available")
	ErrEmptyPrediction = errors.New("model returned no output")
)

// Encode builds the model input row for a house. Slots 0..2 hold the
// numeric features and exactly one slot after the prefix is set to 1 for
// the chosen location.
func Encode(house models.HouseFeatures, params models.ParameterDescriptor) (models.FeatureVector, error) {
	idx := params.IndexOf(house.Location)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, house.Location)
	}

	vec := make(models.FeatureVector, params.Width())
	vec[0] = house.TotalSqFeet
	vec[1] = house.Bathrooms
	vec[2] = house.Bedrooms
	vec[params.Prefix+idx] = 1

	return vec, nil
}

// Predict runs single-row inference and converts the output from lakh to rupees.
func Predict(vec models.FeatureVector, model artifacts.Regressor) (float64, error) {
	out, err := model.Predict([][]float64{vec})
	if err != nil {
		return 0, fmt.Errorf("model inference failed: %w", err)
	}
	if len(out) == 0 {
		return 0, ErrEmptyPrediction
	}
	return out[0] * models.LakhMultiplier, nil
}

// Classify maps non-positive prices to an invalid estimate.
func Classify(price float64) models.Estimate {
	if price <= 0 {
		return models.Estimate{}
	}
	return models.Estimate{Amount: price, Valid: true}
}

// Formatter renders a price for display.
type Formatter interface {
	Format(amount float64) string
}

// PredictionService defines the interface for house price predictions.
type PredictionService interface {
	// Estimate predicts the sale price for a house.
	// Returns ErrUnknownLocation if the location is not a known column.
	// Returns ErrNoEstimate if the model yields a non-positive price.
	Estimate(ctx context.Context, house models.HouseFeatures) (*models.PredictionResult, error)

	// Locations returns the selectable locations in model order.
	Locations() []string

	// ModelInfo describes the loaded artifacts.
	ModelInfo() ModelInfo
}

// ModelInfo summarizes the loaded artifact bundle.
type ModelInfo struct {
	LoadedAt      time.Time
	Version       string
	Source        string
	LocationCount int
}

// predictionService is the concrete implementation of PredictionService.
type predictionService struct {
	bundle    *artifacts.Bundle
	formatter Formatter
	log       *logger.Logger
}

// NewPredictionService creates a new instance of PredictionService over an
// already loaded bundle.
func NewPredictionService(bundle *artifacts.Bundle, formatter Formatter, log *logger.Logger) PredictionService {
	return &predictionService{
		bundle:    bundle,
		formatter: formatter,
		log:       log,
	}
}

// Estimate encodes the house, runs the model and classifies the price.
func (s *predictionService) Estimate(ctx context.Context, house models.HouseFeatures) (*models.PredictionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec, err := Encode(house, s.bundle.Params)
	if err != nil {
		s.log.Warn("Unknown location requested", map[string]interface{}{
			"location": house.Location,
		})
		return nil, err
	}

	price, err := Predict(vec, s.bundle.Model)
	if err != nil {
		s.log.Error("Prediction failed", err, map[string]interface{}{
			"location":      house.Location,
			"model_version": s.bundle.Version,
		})
		return nil, err
	}

	est := Classify(price)
	if !est.Valid {
		s.log.Info("No estimate for house", map[string]interface{}{
			"location":  house.Location,
			"sq_feet":   house.TotalSqFeet,
			"bathrooms": house.Bathrooms,
			"bedrooms":  house.Bedrooms,
			"raw_price": price,
		})
		return nil, ErrNoEstimate
	}

	formatted := s.formatter.Format(est.Amount)

	s.log.Debug("Predicted house price", map[string]interface{}{
		"location":      house.Location,
		"price":         est.Amount,
		"model_version": s.bundle.Version,
	})

	return &models.PredictionResult{
		CreatedAt:      time.Now(),
		FormattedPrice: formatted,
		Message:        fmt.Sprintf(SuccessMessageFormat, formatted),
		ModelVersion:   s.bundle.Version,
		Vector:         vec,
		Price:          est.Amount,
	}, nil
}

// Locations returns a copy of the known location columns.
func (s *predictionService) Locations() []string {
	out := make([]string, len(s.bundle.Params.Columns))
	copy(out, s.bundle.Params.Columns)
	return out
}

func (s *predictionService) ModelInfo() ModelInfo {
	return ModelInfo{
		LoadedAt:      s.bundle.LoadedAt,
		Version:       s.bundle.Version,
		Source:        s.bundle.Source,
		LocationCount: len(s.bundle.Params.Columns),
	}
}
