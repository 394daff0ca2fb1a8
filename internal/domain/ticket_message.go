package domain

import "time"

// TicketMessage captures communications in a ticket thread. Internal
// messages are visible to staff only; public messages to anyone who can
// access the ticket.
type TicketMessage struct {
	ID           string
	TicketID     string
	AuthorID     string
	Body         string
	IsInternal   bool
	OriginalBody *string
	EditedAt     *time.Time
	Attachments  []AttachmentReference
	CreatedAt    time.Time
}

// Edit replaces the body, keeping the first original for the audit trail.
func (m *TicketMessage) Edit(body string, now time.Time) {
	if m.OriginalBody == nil {
		original := m.Body
		m.OriginalBody = &original
	}
	m.Body = body
	edited := now
	m.EditedAt = &edited
}

// AttachmentReference stores metadata for ticket message attachments.
type AttachmentReference struct {
	ID              string
	TicketMessageID string
	StorageKey      string
	FileName        string
	MimeType        string
	SizeBytes       int64
	CreatedAt       time.Time
}
