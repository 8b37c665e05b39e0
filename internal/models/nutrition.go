package models

import (
	"slices"
	"time"
)

// AnalysisRecord is the result of one ingestion call. Only the most recent
// record is retained by the server.
type AnalysisRecord struct {
	ID          int64     `json:"id"`
	Image       ImageInfo `json:"image"`
	WeightGrams float64   `json:"weight"` // in grams
	Analysis    Analysis  `json:"analysis"`
	Timestamp   time.Time `json:"timestamp"`
}

// ImageInfo describes the stored upload, not its bytes.
type ImageInfo struct {
	StoredName   string `json:"filename"`
	OriginalName string `json:"originalName"`
	SizeBytes    int64  `json:"size"`
	ServedPath   string `json:"path"` // e.g. /uploads/<filename>
}

// Analysis is derived from the classification and the measured weight.
type Analysis struct {
	FoodType          string    `json:"foodType"`
	Confidence        float64   `json:"confidence"` // 0..1
	Nutrition         Nutrition `json:"nutrition"`
	HealthSuggestions []string  `json:"healthSuggestions"`
}

// Nutrition holds rounded totals for the whole portion.
type Nutrition struct {
	Calories int `json:"calories"` // kcal
	Protein  int `json:"protein"`  // grams
	Carbs    int `json:"carbs"`    // grams
	Fat      int `json:"fat"`      // grams
	Fiber    int `json:"fiber"`    // grams
}

// Classification is what a model says about an image.
type Classification struct {
	FoodType   string  `json:"food_type"`
	Confidence float64 `json:"confidence"`
}

// Clone returns a copy that shares no mutable state with r.
func (r *AnalysisRecord) Clone() *AnalysisRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Analysis.HealthSuggestions = slices.Clone(r.Analysis.HealthSuggestions)
	return &c
}
