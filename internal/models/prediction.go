package models

import "time"

// LakhMultiplier converts the model's output unit (lakh) to rupees.
const LakhMultiplier = 100000.0

// Estimate is the classified outcome of a prediction.
// Valid is false when the model produced a non-positive price, which is
// read as "no houses in this location with these features".
type Estimate struct {
	Amount float64
	Valid  bool
}

// HouseFeatures holds the user-supplied attributes of a house.
type HouseFeatures struct {
	Location    string
	TotalSqFeet float64
	Bathrooms   float64
	Bedrooms    float64
}

// PredictionResult is returned for a valid estimate.
type PredictionResult struct {
	CreatedAt      time.Time
	FormattedPrice string
	Message        string
	ModelVersion   string
	Vector         FeatureVector
	Price          float64
}

// ModelSnapshot is a published pair of artifacts stored in PostgreSQL.
// ModelJSON is kept raw; it is decoded by the artifacts package.
type ModelSnapshot struct {
	CreatedAt time.Time           `json:"createdAt"`
	ModelKey  string              `json:"modelKey"`
	ModelJSON []byte              `json:"-"`
	Params    ParameterDescriptor `json:"params"`
	ID        int64               `json:"id"`
	Version   int                 `json:"version"`
	Active    bool                `json:"active"`
}
