// Package models provides shared value types for the decision engine.
package models

import (
	"time"
)

// Bar represents OHLCV data for a time period.
type Bar struct {
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Open      float64   `json:"open" msgpack:"open"`
	High      float64   `json:"high" msgpack:"high"`
	Low       float64   `json:"low" msgpack:"low"`
	Close     float64   `json:"close" msgpack:"close"`
	Volume    float64   `json:"volume" msgpack:"volume"`
}

// Closes returns the close prices of bars in order.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volumes of bars in order.
func Volumes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// Quote is the latest market observation for one symbol.
type Quote struct {
	Symbol     string  `json:"symbol" yaml:"symbol" msgpack:"symbol"`
	LastPrice  float64 `json:"last_price" yaml:"last_price" msgpack:"last_price"`
	Close      float64 `json:"close" yaml:"close" msgpack:"close"`
	Return     float64 `json:"return" yaml:"return" msgpack:"return"`
	Volatility float64 `json:"volatility" yaml:"volatility" msgpack:"volatility"`
	History    []Bar   `json:"history,omitempty" yaml:"-" msgpack:"history,omitempty"`
}

// Price returns the best available price: last price, then close, then fallback.
func (q Quote) Price(fallback float64) float64 {
	if q.LastPrice > 0 {
		return q.LastPrice
	}
	if q.Close > 0 {
		return q.Close
	}
	return fallback
}

// MarketSnapshot maps symbol to its latest quote.
type MarketSnapshot map[string]Quote

// Position represents a portfolio holding.
type Position struct {
	Symbol   string  `json:"symbol" yaml:"symbol" msgpack:"symbol"`
	Weight   float64 `json:"weight" yaml:"weight" msgpack:"weight"`
	Quantity float64 `json:"quantity" yaml:"quantity" msgpack:"quantity"`
	AvgPrice float64 `json:"avg_price" yaml:"avg_price" msgpack:"avg_price"`
	Value    float64 `json:"value" yaml:"value" msgpack:"value"`
}

// MarketRegime classifies the prevailing market conditions.
type MarketRegime string

const (
	RegimeHighVolatility     MarketRegime = "high_volatility"
	RegimeModerateVolatility MarketRegime = "moderate_volatility"
	RegimeLowVolatility      MarketRegime = "low_volatility"
	RegimeStable             MarketRegime = "stable"
	RegimeNormal             MarketRegime = "normal"
	RegimeHighLiquidity      MarketRegime = "high_liquidity"
	RegimeLowLiquidity       MarketRegime = "low_liquidity"
	RegimeUnknown            MarketRegime = "unknown"
)
