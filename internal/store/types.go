package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rendis/flowlens/pkg/schema"
)

// Run is one persisted analysis run.
type Run struct {
	ID        string          `json:"id"`
	Source    string          `json:"source"`
	Workflow  string          `json:"workflow"`
	Kind      string          `json:"kind"`
	Sequence  int64           `json:"sequence"`
	Result    json.RawMessage `json:"result"`
	Stats     schema.Stats    `json:"stats"`
	Warnings  int             `json:"warnings"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewRun builds a Run record from an analysis result. The full result is
// serialized into the record; the stat columns are denormalized for querying.
func NewRun(result *schema.AnalysisResult) (*Run, error) {
	if result == nil || result.Root == nil {
		return nil, schema.NewError(schema.ErrCodeStore, "cannot persist empty analysis result")
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis result: %w", err)
	}
	return &Run{
		ID:        result.Metadata.RunID,
		Source:    result.Metadata.Source,
		Workflow:  result.Root.Name,
		Kind:      string(result.Root.Kind),
		Result:    raw,
		Stats:     result.Metadata.Stats,
		Warnings:  len(result.Metadata.Warnings),
		CreatedAt: result.Metadata.AnalyzedAt,
	}, nil
}

// Unmarshal reconstructs the analysis result stored in the run.
func (r *Run) Unmarshal() (*schema.AnalysisResult, error) {
	var result schema.AnalysisResult
	if err := json.Unmarshal(r.Result, &result); err != nil {
		return nil, fmt.Errorf("unmarshal run %s: %w", r.ID, err)
	}
	return &result, nil
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Source   string     `json:"source,omitempty"`
	Workflow string     `json:"workflow,omitempty"`
	Kind     string     `json:"kind,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}
