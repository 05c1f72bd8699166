package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultSessionTitle is used until the first question retitles the session.
const DefaultSessionTitle = "Cuộc trò chuyện mới"

// ChatSession groups a user's Q/A turns under a title. The title follows
// the most recent user question.
type ChatSession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"user_id"`
	Title        string             `bson:"title" json:"title"`
	MessageCount int                `bson:"message_count" json:"message_count"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// ChatTurn is one question/answer pair. Append-only.
type ChatTurn struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"user_id"`
	SessionID    string             `bson:"session_id" json:"session_id"`
	Message      string             `bson:"message" json:"message"`
	Response     string             `bson:"response" json:"response"`
	SelectedFile string             `bson:"selected_file,omitempty" json:"selected_file,omitempty"`
	Timestamp    time.Time          `bson:"timestamp" json:"timestamp"`
}
