package registry

import "time"

// File states.
const (
	StatePending   = "pending"
	StateConfirmed = "confirmed"
)

// File is one presigned upload slot awaiting, or past, confirmation.
type File struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UUID        string     `gorm:"uniqueIndex;not null" json:"uuid"`
	ParentUUID  string     `gorm:"index;not null" json:"parent_uuid"`
	Filename    string     `gorm:"not null" json:"filename"`
	ObjectKey   string     `gorm:"not null" json:"object_key"`
	CommitMsg   string     `gorm:"size:225" json:"commit_msg,omitempty"`
	State       string     `gorm:"index;not null" json:"state"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}
