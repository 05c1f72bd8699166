package services

import (
	"context"
	"fmt"
	"time"

	"ragviet-backend/models"
	"ragviet-backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChatService owns all MongoDB access for users, chat sessions, chat
// turns and per-user file records.
type ChatService struct {
	users    *mongo.Collection
	sessions *mongo.Collection
	history  *mongo.Collection
	files    *mongo.Collection
}

func NewChatService(db *mongo.Database) *ChatService {
	return &ChatService{
		users:    db.Collection("users"),
		sessions: db.Collection("chat_sessions"),
		history:  db.Collection("chat_history"),
		files:    db.Collection("files"),
	}
}

// nowUTC is the single clock for persisted timestamps: UTC at
// millisecond precision, so they serialize as ISO-8601 with a Z suffix
// and no sub-millisecond noise.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// --- users ---

// CreateUser registers a new account. Email and username collisions are
// reported with the user-facing Vietnamese message.
func (s *ChatService) CreateUser(ctx context.Context, username, email, password string, bcryptCost int) (*models.User, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{
		"$or": []bson.M{{"email": email}, {"username": username}},
	})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("Email hoặc username đã tồn tại")
	}

	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    nowUTC(),
		IsActive:     true,
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("Email hoặc username đã tồn tại")
		}
		return nil, err
	}
	return user, nil
}

func (s *ChatService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *ChatService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id")
	}
	var user models.User
	err = s.users.FindOne(ctx, bson.M{"_id": oid}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePassword replaces the stored hash, used by the OTP reset flow.
func (s *ChatService) UpdatePassword(ctx context.Context, email, password string, bcryptCost int) error {
	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return err
	}
	result, err := s.users.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"password_hash": hash}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("Email không tồn tại trong hệ thống")
	}
	return nil
}

// --- chat sessions ---

// CreateChatSession opens a fresh conversation with the default title.
func (s *ChatService) CreateChatSession(ctx context.Context, userID string) (*models.ChatSession, error) {
	now := nowUTC()
	session := &models.ChatSession{
		ID:           primitive.NewObjectID(),
		UserID:       userID,
		Title:        models.DefaultSessionTitle,
		MessageCount: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if _, err := s.sessions.InsertOne(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// GetChatSession returns the session only when it belongs to the user.
func (s *ChatService) GetChatSession(ctx context.Context, userID, sessionID string) (*models.ChatSession, error) {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return nil, nil
	}
	var session models.ChatSession
	err = s.sessions.FindOne(ctx, bson.M{"_id": oid, "user_id": userID}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetChatSessions lists a user's conversations, most recently active
// first.
func (s *ChatService) GetChatSessions(ctx context.Context, userID string, limit int64) ([]models.ChatSession, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := s.sessions.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []models.ChatSession{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// TouchSession retitles the conversation to the latest question, bumps
// the message count and refreshes updated_at.
func (s *ChatService) TouchSession(ctx context.Context, userID, sessionID, title string) error {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id")
	}
	_, err = s.sessions.UpdateOne(ctx,
		bson.M{"_id": oid, "user_id": userID},
		bson.M{
			"$set": bson.M{"title": title, "updated_at": nowUTC()},
			"$inc": bson.M{"message_count": 1},
		},
	)
	return err
}

// --- chat history ---

// SaveChatTurn appends one question/answer pair to the history.
func (s *ChatService) SaveChatTurn(ctx context.Context, turn *models.ChatTurn) error {
	if turn.ID.IsZero() {
		turn.ID = primitive.NewObjectID()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = nowUTC()
	}
	_, err := s.history.InsertOne(ctx, turn)
	return err
}

// GetSessionMessages returns a conversation's turns oldest first, only
// when the session belongs to the user.
func (s *ChatService) GetSessionMessages(ctx context.Context, userID, sessionID string) ([]models.ChatTurn, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cursor, err := s.history.Find(ctx, bson.M{"user_id": userID, "session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	turns := []models.ChatTurn{}
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// GetUserHistory returns a user's full history newest first, for the
// admin export.
func (s *ChatService) GetUserHistory(ctx context.Context, userID string, limit int64) ([]models.ChatTurn, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit)
	cursor, err := s.history.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	turns := []models.ChatTurn{}
	if err := cursor.All(ctx, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

// --- file records ---

// SaveFileRecord upserts the per-user file entry after an upload. A
// re-upload of the same filename replaces the previous record.
func (s *ChatService) SaveFileRecord(ctx context.Context, record *models.FileRecord) error {
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	if record.UploadedAt.IsZero() {
		record.UploadedAt = nowUTC()
	}
	_, err := s.files.UpdateOne(ctx,
		bson.M{"user_id": record.UserID, "filename": record.Filename},
		bson.M{"$set": bson.M{
			"chunk_count": record.ChunkCount,
			"page_count":  record.PageCount,
			"blob_url":    record.BlobURL,
			"size_bytes":  record.SizeBytes,
			"uploaded_at": record.UploadedAt,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// GetUserFiles lists a user's uploaded documents, newest first.
func (s *ChatService) GetUserFiles(ctx context.Context, userID string) ([]models.FileRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "uploaded_at", Value: -1}})
	cursor, err := s.files.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.FileRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *ChatService) GetUserFile(ctx context.Context, userID, filename string) (*models.FileRecord, error) {
	var record models.FileRecord
	err := s.files.FindOne(ctx, bson.M{"user_id": userID, "filename": filename}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *ChatService) DeleteUserFile(ctx context.Context, userID, filename string) error {
	_, err := s.files.DeleteOne(ctx, bson.M{"user_id": userID, "filename": filename})
	return err
}

func (s *ChatService) ClearUserFiles(ctx context.Context, userID string) error {
	_, err := s.files.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}
