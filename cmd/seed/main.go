package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
)

func floatPtr(v float64) *float64 { return &v }

func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "feedbackdb"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(dbName)

	ownerID := "host_demo0001"
	now := time.Now()

	survey := model.Survey{
		OwnerID:      ownerID,
		Title:        "Customer Service Feedback",
		Description:  "Post-call satisfaction survey for support interactions.",
		IntroMessage: "Hi! Thanks for contacting our support team. We'd love your feedback — it takes under a minute.",
		OutroMessage: "Thank you for completing our survey! Your feedback helps us improve.",
		Status:       model.SurveyStatusActive,
		MaxRetries:   3,
		CreatedAt:    now,
		UpdatedAt:    now,
		Questions: []model.SurveyQuestion{
			{
				ID:       "q_overall",
				Text:     "How satisfied are you with the service you received today?",
				Type:     model.QuestionTypeRating,
				Required: true,
				ScaleMin: floatPtr(1),
				ScaleMax: floatPtr(5),
				FollowUpLogic: map[string]string{
					"1-2": "q_issue",
					"4-5": "q_highlight",
				},
			},
			{
				ID:       "q_issue",
				Text:     "We're sorry to hear that. What went wrong?",
				Type:     model.QuestionTypeOpenEnded,
				Required: true,
			},
			{
				ID:       "q_highlight",
				Text:     "Great! What did you like most?",
				Type:     model.QuestionTypeMultipleChoice,
				Required: true,
				Options:  []string{"Speed of resolution", "Agent friendliness", "Clarity of answers"},
			},
			{
				ID:       "q_recommend",
				Text:     "Would you recommend our service to a friend?",
				Type:     model.QuestionTypeYesNo,
				Required: true,
			},
			{
				ID:        "q_comments",
				Text:      "Anything else you'd like to share?",
				Type:      model.QuestionTypeText,
				MaxLength: 500,
			},
		},
	}

	res, err := db.Collection("surveys").InsertOne(ctx, survey)
	if err != nil {
		log.Fatalf("Failed to insert survey: %v", err)
	}
	fmt.Printf("Seeded survey %v for owner %s\n", res.InsertedID, ownerID)

	doc := model.Document{
		OwnerID:          ownerID,
		Name:             "product-faq",
		Description:      "Frequently asked questions about plans and billing.",
		Status:           model.DocumentStatusProcessed,
		VectorCollection: "kb_product_faq",
		EmbeddingsCount:  3,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	docRes, err := db.Collection("documents").InsertOne(ctx, doc)
	if err != nil {
		log.Fatalf("Failed to insert document: %v", err)
	}
	fmt.Printf("Seeded document %v\n", docRes.InsertedID)

	chunks := []interface{}{
		model.Chunk{
			Collection: "kb_product_faq",
			DocumentID: fmt.Sprintf("%v", docRes.InsertedID),
			Index:      0,
			Content:    "Our standard plan includes unlimited calls within the country and 5GB of data. Upgrades are prorated to the day.",
		},
		model.Chunk{
			Collection: "kb_product_faq",
			DocumentID: fmt.Sprintf("%v", docRes.InsertedID),
			Index:      1,
			Content:    "Billing runs on the first of each month. You can change your payment method any time from the account page.",
		},
		model.Chunk{
			Collection: "kb_product_faq",
			DocumentID: fmt.Sprintf("%v", docRes.InsertedID),
			Index:      2,
			Content:    "To cancel your subscription, contact support or use the self-service portal. Cancellation takes effect at the end of the billing period.",
		},
	}
	if _, err := db.Collection("chunks").InsertMany(ctx, chunks); err != nil {
		log.Fatalf("Failed to insert chunks: %v", err)
	}
	fmt.Println("Seeded 3 knowledge chunks (embeddings are generated at ingestion in production)")
}
