package repository

import (
	"context"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order asc")
}

func (r *QuizRepository) FindByID(ctx context.Context, quizID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).Preload("Questions", orderedQuestions).First(&quiz, quizID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: quiz %d", util.ErrNotFound, quizID)
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) FindActiveByLesson(ctx context.Context, lessonID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", orderedQuestions).
		Where("lesson_id = ? AND is_active = ?", lessonID, true).
		First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no quiz for lesson %d", util.ErrNotFound, lessonID)
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

// Create 每个课时只允许一个测验
func (r *QuizRepository) Create(ctx context.Context, quiz *model.Quiz) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(quiz).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: quiz already exists for lesson %d", util.ErrConflict, quiz.LessonID)
	}
	return err
}
