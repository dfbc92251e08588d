package model

type ImportTaskStatus string

const (
	ImportTaskStatusCreated    ImportTaskStatus = "created"
	ImportTaskStatusProcessing ImportTaskStatus = "processing"
	ImportTaskStatusFinished   ImportTaskStatus = "finished"
)

// ImportTask is one uploaded descriptor. ProcessedEntries only grows, by the
// number of staging entries that left pending, and never exceeds TotalEntries.
type ImportTask struct {
	ID               string           `db:"id"`
	CreatorID        string           `db:"creator_id"`
	Status           ImportTaskStatus `db:"status"`
	FileKey          string           `db:"file_key"`
	TotalEntries     int              `db:"total_entries"`
	ProcessedEntries int              `db:"processed_entries"`
	Ctime            int64            `db:"ctime"`
	Mtime            int64            `db:"mtime"`
}

// Progress is processed/total as a percentage; an empty task counts as done.
func (t *ImportTask) Progress() float64 {
	if t.TotalEntries == 0 {
		return 100
	}
	return float64(t.ProcessedEntries) / float64(t.TotalEntries) * 100
}
