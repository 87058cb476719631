package domain

import "time"

// Project is a client's design project as seen by the collaboration channel.
// It is storage-agnostic and shared by both the durable and the local store.
type Project struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	DesignerID  *string    `json:"designer_id,omitempty"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      Status     `json:"status"`
	HoursUsed   float64    `json:"hours_used"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasDesigner reports whether a designer has been assigned.
func (p *Project) HasDesigner() bool {
	return p.DesignerID != nil && *p.DesignerID != ""
}

// Message is a single chat entry between the client and the designer.
// Only IsRead ever changes after creation.
type Message struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	SenderRole Role      `json:"sender_role"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
}

// Cursor returns the message's position in the channel's total order.
func (m Message) Cursor() Cursor {
	return Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// ProjectFile is a metadata reference to a file uploaded through the file transport.
type ProjectFile struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	FileName       string    `json:"file_name"`
	FileSizeBytes  *int64    `json:"file_size_bytes,omitempty"`
	FileURL        *string   `json:"file_url,omitempty"`
	UploadedByRole Role      `json:"uploaded_by_role"`
	CreatedAt      time.Time `json:"created_at"`
}

// Actor identifies who is calling into the channel.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Name string `json:"name"`
}

// CreateProjectInput holds the fields a client supplies for a new project.
type CreateProjectInput struct {
	Name        string
	Type        string
	Description string
	Deadline    *time.Time
}

// SendMessageInput is the payload of an outgoing chat message.
// ID may be pre-assigned by the sender so an optimistic echo can be reconciled.
type SendMessageInput struct {
	ID      string
	Content string
}

// RegisterFileInput is the upload-complete notification from the file transport.
type RegisterFileInput struct {
	FileName      string
	FileSizeBytes *int64
	FileURL       *string
}

// StatusChange is the outcome of a status write performed under the store's lock.
type StatusChange struct {
	Project  *Project
	Previous Status
	Changed  bool
}

// ProjectScope narrows which projects a store returns for a listing.
// An empty scope returns every project in the store.
type ProjectScope struct {
	OwnerID    string
	DesignerID string
}

// ProjectSummary is a project card for the overview list.
type ProjectSummary struct {
	Project
	ClientName string `json:"client_name"`
	Unread     int    `json:"unread"`
}
