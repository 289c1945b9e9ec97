package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrRecognitionNotFound = errors.New("recognition evaluation not found")
	ErrAlreadyEvaluated    = errors.New("participant already evaluated for recognition")
)

const recognitionConstraint = "idx_recognition_evaluations_entry"

// RecognitionEvaluation is the first bridge signal settled for a participant.
// Later evaluations read it back instead of drawing a new factor.
type RecognitionEvaluation struct {
	ID           string    `gorm:"primaryKey;size:32"`
	EventID      string    `gorm:"not null;uniqueIndex:idx_recognition_evaluations_entry,priority:1"`
	UserID       string    `gorm:"not null;uniqueIndex:idx_recognition_evaluations_entry,priority:2"`
	Status       string    `gorm:"not null"`
	Reason       string    `gorm:"not null;default:''"`
	RandomFactor float64   `gorm:"not null;type:double precision"`
	Threshold    float64   `gorm:"not null;type:double precision"`
	EvaluatedBy  string    `gorm:"not null"`
	EvaluatedAt  time.Time `gorm:"not null"`
}

func (e *RecognitionEvaluation) BeforeUpdate(*gorm.DB) error {
	return ErrImmutableRecord
}

func (e *RecognitionEvaluation) BeforeDelete(*gorm.DB) error {
	return ErrImmutableRecord
}

type RecognitionDAO struct {
	db *gorm.DB
}

func NewRecognitionDAO(db *gorm.DB) *RecognitionDAO {
	return &RecognitionDAO{
		db: db,
	}
}

func (d *RecognitionDAO) Insert(ctx context.Context, e RecognitionEvaluation) (RecognitionEvaluation, error) {
	if err := d.db.WithContext(ctx).Create(&e).Error; err != nil {
		if isUniqueViolation(err, recognitionConstraint) {
			return RecognitionEvaluation{}, ErrAlreadyEvaluated
		}
		return RecognitionEvaluation{}, err
	}
	return e, nil
}

func (d *RecognitionDAO) Find(ctx context.Context, eventID, userID string) (RecognitionEvaluation, error) {
	var e RecognitionEvaluation

	result := d.db.WithContext(ctx).First(&e, "event_id = ? AND user_id = ?", eventID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return RecognitionEvaluation{}, ErrRecognitionNotFound
		}

		return RecognitionEvaluation{}, result.Error
	}

	return e, nil
}
