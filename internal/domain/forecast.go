package domain

import "time"

// ForecastFeatures is the input contract of the external forecasting service:
// the market features it derives a probability distribution from.
type ForecastFeatures struct {
	TotalVolume    string        `json:"totalVolume"`
	TotalLiquidity string        `json:"totalLiquidity"`
	ResolutionTime string        `json:"resolutionTime"`
	OutcomeCount   int           `json:"outcomeCount"`
	Outcomes       []OutcomeSlot `json:"outcomes"`
	Prices         []string      `json:"prices"`
	History        []struct {
		Prices []string `json:"prices"`
	} `json:"history"`
}

// OutcomeForecast is the forecast for a single outcome.
type OutcomeForecast struct {
	Outcome     string  `json:"outcome"`
	OutcomeID   int     `json:"outcomeId"`
	Probability float64 `json:"probability"`
	Confidence  float64 `json:"confidence"`
}

// Forecast is the probability distribution the forecasting service returns
// for a market.
type Forecast struct {
	Forecast     []OutcomeForecast `json:"forecast"`
	Confidence   float64           `json:"confidence"`
	ModelVersion string            `json:"modelVersion"`
	Timestamp    time.Time         `json:"timestamp"`
}
