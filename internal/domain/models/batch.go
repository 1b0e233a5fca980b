package models

import (
	"time"
)

// BatchItemStatus is the outcome of processing one profile in a batch
type BatchItemStatus string

const (
	BatchItemProcessed      BatchItemStatus = "processed"
	BatchItemFailed         BatchItemStatus = "failed"
	BatchItemEvidenceFailed BatchItemStatus = "evidence_failed"
	BatchItemBelowThreshold BatchItemStatus = "below_threshold"
)

// BatchItem records what happened to a single profile
type BatchItem struct {
	Platform    string          `json:"platform"`
	ProfileName string          `json:"profile_name"`
	Status      BatchItemStatus `json:"status"`
	RiskScore   float64         `json:"risk_score"`
	Error       string          `json:"error,omitempty"`
}

// BatchReport summarizes a coordinator pass for operators
type BatchReport struct {
	Analyzed   int         `json:"analyzed"`
	Suspicious int         `json:"suspicious"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	Items      []BatchItem `json:"items"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
}

// Record appends an item and updates the counters
func (r *BatchReport) Record(item BatchItem) {
	r.Items = append(r.Items, item)
	switch item.Status {
	case BatchItemProcessed:
		r.Succeeded++
	case BatchItemFailed, BatchItemEvidenceFailed:
		r.Failed++
	}
}

// Errors returns the error message of every failed item
func (r *BatchReport) Errors() []string {
	var errs []string
	for _, item := range r.Items {
		if item.Error != "" {
			errs = append(errs, item.Platform+"/"+item.ProfileName+": "+item.Error)
		}
	}
	return errs
}

// ScanRequest starts a monitor run. Empty fields fall back to configuration.
type ScanRequest struct {
	Terms     []string `json:"terms,omitempty" validate:"omitempty,max=50,dive,required,max=200"`
	Platforms []string `json:"platforms,omitempty" validate:"omitempty,dive,required"`
	FileCases *bool    `json:"file_cases,omitempty"`
}
