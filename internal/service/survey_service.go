package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/moeJEE/llm-phone-feedback-agent/internal/model"
	"github.com/moeJEE/llm-phone-feedback-agent/internal/repository"
)

var ErrNotOwner = errors.New("survey does not belong to this host")

// SurveyService handles survey definition CRUD and lifecycle transitions.
type SurveyService struct {
	surveys repository.SurveyRepo
}

func NewSurveyService(surveys repository.SurveyRepo) *SurveyService {
	return &SurveyService{surveys: surveys}
}

// Create validates and stores a new survey. Questions without ids get one
// assigned so follow-up logic and responses can reference them.
func (s *SurveyService) Create(ctx context.Context, survey *model.Survey) (string, error) {
	if survey.Title == "" {
		return "", fmt.Errorf("survey title is required")
	}
	if len(survey.Questions) == 0 {
		return "", fmt.Errorf("survey must have at least one question")
	}

	for i := range survey.Questions {
		q := &survey.Questions[i]
		if q.ID == "" {
			q.ID = "q_" + uuid.New().String()[:8]
		}
		if q.Type == "" {
			q.Type = model.QuestionTypeText
		}
		if q.Type == model.QuestionTypeMultipleChoice && len(q.Options) < 2 {
			return "", fmt.Errorf("question %d: multiple choice needs at least 2 options", i+1)
		}
	}

	if err := validateFollowUps(survey); err != nil {
		return "", err
	}

	return s.surveys.Create(ctx, survey)
}

func validateFollowUps(survey *model.Survey) error {
	ids := map[string]bool{}
	for _, q := range survey.Questions {
		ids[q.ID] = true
	}
	for _, q := range survey.Questions {
		for condition, target := range q.FollowUpLogic {
			if !ids[target] {
				return fmt.Errorf("question %s: follow-up %q points at unknown question %s", q.ID, condition, target)
			}
		}
	}
	return nil
}

func (s *SurveyService) Get(ctx context.Context, id string) (*model.Survey, error) {
	return s.surveys.GetByID(ctx, id)
}

func (s *SurveyService) ListByOwner(ctx context.Context, ownerID string) ([]*model.Survey, error) {
	return s.surveys.GetByOwnerID(ctx, ownerID)
}

// Update replaces a survey definition after an ownership check.
func (s *SurveyService) Update(ctx context.Context, ownerID string, survey *model.Survey) error {
	existing, err := s.surveys.GetByID(ctx, survey.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrSurveyNotFound
	}
	if existing.OwnerID != ownerID {
		return ErrNotOwner
	}
	survey.OwnerID = ownerID
	if err := validateFollowUps(survey); err != nil {
		return err
	}
	return s.surveys.Update(ctx, survey)
}

// SetStatus moves a survey through its lifecycle.
func (s *SurveyService) SetStatus(ctx context.Context, ownerID, id string, status model.SurveyStatus) error {
	survey, err := s.surveys.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if survey == nil {
		return ErrSurveyNotFound
	}
	if survey.OwnerID != ownerID {
		return ErrNotOwner
	}
	survey.Status = status
	return s.surveys.Update(ctx, survey)
}

func (s *SurveyService) Delete(ctx context.Context, ownerID, id string) error {
	survey, err := s.surveys.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if survey == nil {
		return ErrSurveyNotFound
	}
	if survey.OwnerID != ownerID {
		return ErrNotOwner
	}
	return s.surveys.Delete(ctx, id)
}
