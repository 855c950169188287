package models

import (
	"fmt"
	"time"
)

// Stage names one step of the document pipeline.
type Stage string

const (
	StageExtract   Stage = "extract_pdf_text"
	StageStructure Stage = "extract_structured_info"
	StageLoad      Stage = "load_to_database"
)

// Stages lists the pipeline steps in dependency order.
var Stages = []Stage{StageExtract, StageStructure, StageLoad}

// ExtractedRecord is the text pulled out of one source file.
type ExtractedRecord struct {
	DocumentID     string         `json:"-"`
	Filename       string         `json:"filename"`
	DocumentType   string         `json:"document_type,omitempty"`
	Content        string         `json:"content"`
	ExtractionDate time.Time      `json:"extraction_date"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// StructuredRecord is the LLM-derived payload for one extracted record.
type StructuredRecord struct {
	DocumentID     string         `json:"document_id"`
	Filename       string         `json:"filename"`
	SourcePath     string         `json:"source_path,omitempty"`
	ExtractionDate time.Time      `json:"extraction_date"`
	JSONData       map[string]any `json:"json_data"`
}

// StageReport carries the counters every stage exposes after it runs.
type StageReport struct {
	Stage       Stage          `json:"stage"`
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Failed      int            `json:"failed"`
	SuccessRate string         `json:"success_rate"`
	OutputPath  string         `json:"output_path,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// RunReport summarizes one pipeline run.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Stages     []StageReport `json:"stages"`
	ReportPath string        `json:"report_path,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// NewStageReport fills the derived fields from the raw counters.
func NewStageReport(stage Stage, total, processed int) StageReport {
	return StageReport{
		Stage:       stage,
		Total:       total,
		Processed:   processed,
		Failed:      total - processed,
		SuccessRate: SuccessRate(processed, total),
	}
}

// SuccessRate formats processed/total as a percentage; an empty batch reports "0%".
func SuccessRate(processed, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", float64(processed)/float64(total)*100)
}
