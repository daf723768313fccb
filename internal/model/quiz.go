package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple-choice"
	TrueFalse      QuestionType = "true-false"
	ShortAnswer    QuestionType = "short-answer"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// swagger:model Quiz
type Quiz struct {
	BaseModel
	LessonID         uint       `gorm:"uniqueIndex:idx_quiz_lesson;not null" json:"lessonId"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	TimeLimitMinutes *int       `json:"timeLimitMinutes,omitempty"`
	PassingScore     int        `gorm:"not null" json:"passingScore"`
	MaxAttempts      int        `gorm:"not null" json:"maxAttempts"`
	IsActive         bool       `gorm:"not null" json:"isActive"`
	Questions        []Question `gorm:"foreignKey:QuizID" json:"questions"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// TotalPoints 所有题目分值之和
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// swagger:model Question
type Question struct {
	BaseModel
	QuizID        uint           `gorm:"not null;uniqueIndex:idx_question_quiz_order,priority:1" json:"quizId"`
	Type          QuestionType   `gorm:"size:32;not null" json:"type"`
	Prompt        string         `gorm:"type:text;not null" json:"question"`
	Options       datatypes.JSON `json:"options,omitempty"`
	CorrectAnswer datatypes.JSON `gorm:"not null" json:"correctAnswer,omitempty"`
	Explanation   string         `gorm:"type:text" json:"explanation,omitempty"`
	Points        int            `gorm:"not null" json:"points"`
	SortOrder     int            `gorm:"column:sort_order;not null;uniqueIndex:idx_question_quiz_order,priority:2" json:"order"`
}

func (Question) TableName() string {
	return "quiz_questions"
}

// OptionList 解码选择题选项，非法 JSON 视为无选项
func (q *Question) OptionList() []string {
	if len(q.Options) == 0 {
		return nil
	}
	var options []string
	if err := json.Unmarshal(q.Options, &options); err != nil {
		return nil
	}
	return options
}
