package domain

import "time"

// PredictionFactors exposes the inputs that drove a forecast, so the
// presentation layer can explain it.
type PredictionFactors struct {
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	WindSpeed       float64 `json:"wind_speed"`
	HistoricalTrend float64 `json:"historical_trend"`
}

// Prediction is a next-period pollen forecast derived from the most recent
// snapshot for the same region.
type Prediction struct {
	RegionID       string            `json:"region_id"`
	ForDate        time.Time         `json:"for_date"`
	PredictedCount float64           `json:"predicted_count"`
	PredictedLevel PollenLevel       `json:"predicted_level"`
	Confidence     float64           `json:"confidence"`
	Factors        PredictionFactors `json:"factors"`
}
