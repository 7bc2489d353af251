package models

import "time"

type Comment struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

func NewComment(content, taskID, userID string) *Comment {
	return &Comment{
		ID:        NewID(),
		Content:   content,
		TaskID:    taskID,
		UserID:    userID,
		CreatedAt: Now(),
	}
}

func (c *Comment) EntityID() string   { return c.ID }
func (c *Comment) EntityKind() Kind   { return KindComment }
func (c *Comment) Created() time.Time { return c.CreatedAt }
