package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one row of the append-only conversation log. CreatedUS holds
// the insertion time in Unix microseconds; ID breaks ties between rows that
// share a timestamp.
type Message struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string `gorm:"size:64;not null;index:idx_session_created,priority:1" json:"session_id"`
	Role      string `gorm:"size:16;not null" json:"role"`
	Content   string `gorm:"type:text;not null" json:"content"`
	CreatedUS int64  `gorm:"column:created_us;not null;index:idx_session_created,priority:2" json:"created_us"`
}

func (Message) TableName() string {
	return "conversation_history"
}

func (m Message) CreatedAt() time.Time {
	return time.UnixMicro(m.CreatedUS).UTC()
}

// Turn is the role/content pair handed back by history lookups and sent to
// the completion service.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
