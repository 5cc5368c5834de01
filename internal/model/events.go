package model

import "time"

// AttachmentCreated is published after a record has been written.
type AttachmentCreated struct {
	ServiceOrder string    `json:"service_order"`
	Workcenter   string    `json:"workcenter"`
	Key          string    `json:"key"`
	Location     string    `json:"location"`
	CreatedAt    time.Time `json:"created_at"`
}

// OrphanBlob names a stored object whose record insert failed and whose
// immediate delete failed too.
type OrphanBlob struct {
	ID       string    `json:"id"`
	Key      string    `json:"key"`
	Reason   string    `json:"reason"`
	Attempts int       `json:"attempts"`
	QueuedAt time.Time `json:"queued_at"`
}
