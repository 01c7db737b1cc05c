package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportLogEntry captures one skipped row from a merge job, so callers can
// inspect exactly what did not land and why.
type ImportLogEntry struct {
	ID           int64     `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	SourceFile   string    `json:"source_file"`
	RowNumber    *int      `json:"row_number,omitempty"`
	ProjectName  string    `json:"project_name,omitempty"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}
