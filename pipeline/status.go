package pipeline

import (
	"encoding/json"
	"time"
)

// Status is the projection of DataPipeline returned from
// GET /upload-status (spec.md §6). The status file
// "<index>/<documentId>/__pipeline_status.json" holds DataPipeline's own
// JSON, not a Status. Status omits the transient UploadComplete field
// (already excluded via json:"-" on DataPipeline) and adds Complete;
// otherwise it is a field-for-field mirror.
type Status struct {
	Index          string   `json:"index"`
	DocumentID     string   `json:"document_id"`
	ExecutionID    string   `json:"execution_id"`
	Steps          []string `json:"steps"`
	RemainingSteps []string `json:"remaining_steps"`
	CompletedSteps []string `json:"completed_steps"`
	Tags           Tags     `json:"tags"`
	Files          []*FileDescriptor `json:"files"`

	PreviousExecutionsToPurge []*DataPipeline `json:"previous_executions_to_purge"`

	Creation   time.Time `json:"creation"`
	LastUpdate time.Time `json:"last_update"`

	Complete bool `json:"complete"`
}

// ToStatus projects a DataPipeline into its wire form.
func (p *DataPipeline) ToStatus() *Status {
	return &Status{
		Index:                     p.Index,
		DocumentID:                p.DocumentID,
		ExecutionID:               p.ExecutionID,
		Steps:                     p.Steps,
		RemainingSteps:            p.RemainingSteps,
		CompletedSteps:            p.CompletedSteps,
		Tags:                      p.Tags,
		Files:                     p.Files,
		PreviousExecutionsToPurge: p.PreviousExecutionsToPurge,
		Creation:                  p.Creation,
		LastUpdate:                p.LastUpdate,
		Complete:                  p.Complete(),
	}
}

// Marshal serializes the pipeline to the JSON form written to ContentStore.
func (p *DataPipeline) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// Unmarshal deserializes a pipeline previously written by Marshal. Unknown
// fields are ignored for forward compatibility, per encoding/json defaults.
func Unmarshal(data []byte) (*DataPipeline, error) {
	var p DataPipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
