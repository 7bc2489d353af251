package models

import "time"

type Attachment struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"file_path"`
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	UploadedAt time.Time `json:"uploaded_at"`
}

func NewAttachment(filename, filePath, taskID, userID string) *Attachment {
	return &Attachment{
		ID:         NewID(),
		Filename:   filename,
		FilePath:   filePath,
		TaskID:     taskID,
		UserID:     userID,
		UploadedAt: Now(),
	}
}

func (a *Attachment) EntityID() string   { return a.ID }
func (a *Attachment) EntityKind() Kind   { return KindAttachment }
func (a *Attachment) Created() time.Time { return a.UploadedAt }
