package service

import "github.com/google/uuid"

func newID() string {
	return uuid.NewString()
}

// newFileKey names an uploaded descriptor in the blob store.
func newFileKey(taskID string) string {
	return "import-" + taskID + ".json"
}
