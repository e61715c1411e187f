package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

// ErrSessionConflict is returned when a conditional progression update loses
// the race against a concurrent write for the same session.
var ErrSessionConflict = errors.New("session was modified concurrently")

// SessionRepo handles MongoDB operations for conversation sessions
type SessionRepo interface {
	Create(ctx context.Context, session *model.ConversationSession) (string, error)
	GetByID(ctx context.Context, id string) (*model.ConversationSession, error)
	// GetActiveByContact returns the most recent incomplete session for a
	// contact, or nil when none exists.
	GetActiveByContact(ctx context.Context, contact string) (*model.ConversationSession, error)
	GetBySurveyID(ctx context.Context, surveyID string) ([]*model.ConversationSession, error)
	// AdvanceQuestion stores an answer and moves the question pointer in one
	// conditional write guarded by the expected current index.
	AdvanceQuestion(ctx context.Context, id string, expectedIndex, nextIndex int, questionID string, answer model.StructuredAnswer) error
	// Complete marks the session finished, guarded by the expected index.
	Complete(ctx context.Context, id string, expectedIndex int, questionID string, answer model.StructuredAnswer, endTime time.Time, durationSeconds int) error
	AutoComplete(ctx context.Context, id string, endTime time.Time) error
	SetSentimentResults(ctx context.Context, id string, scores map[string]float64, overall float64, failed bool) error
	AppendMessage(ctx context.Context, id string, msg model.SessionMessage) error
}

type sessionRepo struct {
	collection *mongo.Collection
}

// NewSessionRepo creates a new session repository
func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("survey_results"),
	}
}

// normalizeContact strips formatting so numbers match regardless of how the
// provider renders them.
func normalizeContact(contact string) string {
	r := strings.NewReplacer("+", "", " ", "", "-", "")
	return r.Replace(contact)
}

func (r *sessionRepo) Create(ctx context.Context, session *model.ConversationSession) (string, error) {
	if session.StartTime.IsZero() {
		session.StartTime = time.Now()
	}
	session.Contact = normalizeContact(session.Contact)
	if session.Responses == nil {
		session.Responses = map[string]model.StructuredAnswer{}
	}

	result, err := r.collection.InsertOne(ctx, session)
	if err != nil {
		return "", err
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", nil
	}
	session.ID = oid.Hex()
	return session.ID, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.ConversationSession, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var session model.ConversationSession
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	session.ID = id
	return &session, nil
}

func (r *sessionRepo) GetActiveByContact(ctx context.Context, contact string) (*model.ConversationSession, error) {
	filter := bson.M{
		"contact":   bson.M{"$regex": normalizeContact(contact)},
		"completed": false,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "startTime", Value: -1}})

	var session model.ConversationSession
	err := r.collection.FindOne(ctx, filter, opts).Decode(&session)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) GetBySurveyID(ctx context.Context, surveyID string) ([]*model.ConversationSession, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"surveyId": surveyID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var sessions []*model.ConversationSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) AdvanceQuestion(ctx context.Context, id string, expectedIndex, nextIndex int, questionID string, answer model.StructuredAnswer) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "currentQuestionIndex": expectedIndex, "completed": false},
		bson.M{"$set": bson.M{
			"responses." + questionID: answer,
			"currentQuestionIndex":    nextIndex,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrSessionConflict
	}
	return nil
}

func (r *sessionRepo) Complete(ctx context.Context, id string, expectedIndex int, questionID string, answer model.StructuredAnswer, endTime time.Time, durationSeconds int) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "currentQuestionIndex": expectedIndex, "completed": false},
		bson.M{"$set": bson.M{
			"responses." + questionID: answer,
			"completed":               true,
			"endTime":                 endTime,
			"durationSeconds":         durationSeconds,
			"sentimentPending":        true,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrSessionConflict
	}
	return nil
}

func (r *sessionRepo) AutoComplete(ctx context.Context, id string, endTime time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": oid, "completed": false},
		bson.M{"$set": bson.M{
			"completed":     true,
			"autoCompleted": true,
			"endTime":       endTime,
		}},
	)
	return err
}

func (r *sessionRepo) SetSentimentResults(ctx context.Context, id string, scores map[string]float64, overall float64, failed bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	set := bson.M{
		"sentimentScores":  scores,
		"overallSentiment": overall,
		"sentimentPending": false,
	}
	if failed {
		set["sentimentFailed"] = true
	}

	_, err = r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	return err
}

func (r *sessionRepo) AppendMessage(ctx context.Context, id string, msg model.SessionMessage) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$push": bson.M{"messages": msg}},
	)
	return err
}
