package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuizAttempt 一次提交的计分结果，创建后不再修改
// swagger:model QuizAttempt
type QuizAttempt struct {
	BaseModel
	UserID           uint                `gorm:"not null;uniqueIndex:idx_attempt_user_quiz_number,priority:1;index:idx_attempt_user_quiz,priority:1" json:"userId"`
	QuizID           uint                `gorm:"not null;uniqueIndex:idx_attempt_user_quiz_number,priority:2;index:idx_attempt_user_quiz,priority:2" json:"quizId"`
	AttemptNumber    int                 `gorm:"not null;uniqueIndex:idx_attempt_user_quiz_number,priority:3" json:"attemptNumber"`
	Score            int                 `gorm:"not null" json:"score"`
	TotalPoints      int                 `gorm:"not null" json:"totalPoints"`
	EarnedPoints     int                 `gorm:"not null" json:"earnedPoints"`
	TimeSpentSeconds int                 `gorm:"not null" json:"timeSpent"`
	IsCompleted      bool                `gorm:"not null" json:"isCompleted"`
	IsPassed         bool                `gorm:"not null" json:"isPassed"`
	SubmittedAt      time.Time           `gorm:"not null" json:"submittedAt"`
	Answers          []QuizAttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// swagger:model QuizAttemptAnswer
type QuizAttemptAnswer struct {
	BaseModel
	AttemptID        uint           `gorm:"index;not null" json:"-"`
	QuestionID       uint           `gorm:"not null" json:"questionId"`
	Value            datatypes.JSON `json:"answer"`
	TimeSpentSeconds int            `json:"timeSpent"`
	IsCorrect        bool           `json:"isCorrect"`
	EarnedPoints     int            `json:"earnedPoints"`
}

func (QuizAttemptAnswer) TableName() string {
	return "quiz_attempt_answers"
}
