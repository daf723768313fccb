package service

import (
	"bytes"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

type SubmittedAnswer struct {
	QuestionID uint            `json:"questionId"`
	Answer     json.RawMessage `json:"answer" swaggertype:"object"`
	TimeSpent  int             `json:"timeSpent"`
}

// QuestionResult 单题判分明细
type QuestionResult struct {
	QuestionID    uint               `json:"questionId"`
	Question      string             `json:"question"`
	Type          model.QuestionType `json:"type"`
	UserAnswer    json.RawMessage    `json:"userAnswer" swaggertype:"object"`
	CorrectAnswer json.RawMessage    `json:"correctAnswer" swaggertype:"object"`
	IsCorrect     bool               `json:"isCorrect"`
	Points        int                `json:"points"`
	EarnedPoints  int                `json:"earnedPoints"`
	Explanation   string             `json:"explanation,omitempty"`
}

type ScoreResult struct {
	TotalPoints  int                       `json:"totalPoints"`
	EarnedPoints int                       `json:"earnedPoints"`
	Score        int                       `json:"score"`
	IsPassed     bool                      `json:"isPassed"`
	Questions    []QuestionResult          `json:"questionResults"`
	Answers      []model.QuizAttemptAnswer `json:"-"`
}

var jsonNull = []byte("null")

// ScoreAttempt 对测验的每一道题判分，未作答视为错误。纯函数，不做任何写入
func ScoreAttempt(quiz *model.Quiz, answers []SubmittedAnswer) (*ScoreResult, error) {
	if quiz == nil || len(quiz.Questions) == 0 {
		return nil, fmt.Errorf("%w: quiz has no questions", util.ErrValidation)
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: answers are required", util.ErrValidation)
	}

	submitted := make(map[uint]SubmittedAnswer, len(answers))
	for _, a := range answers {
		if a.QuestionID == 0 {
			return nil, fmt.Errorf("%w: questionId is required for every answer", util.ErrValidation)
		}
		if a.TimeSpent < 0 {
			return nil, fmt.Errorf("%w: timeSpent must not be negative", util.ErrValidation)
		}
		// 同一题重复提交时以第一次为准
		if _, dup := submitted[a.QuestionID]; !dup {
			submitted[a.QuestionID] = a
		}
	}

	questions := make([]model.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	sort.SliceStable(questions, func(i, j int) bool { return questions[i].SortOrder < questions[j].SortOrder })

	result := &ScoreResult{
		TotalPoints: quiz.TotalPoints(),
		Questions: make([]QuestionResult, 0, len(questions)),
		Answers:   make([]model.QuizAttemptAnswer, 0, len(questions)),
	}

	for i := range questions {
		q := &questions[i]
		answer, answered := submitted[q.ID]
		value := normalizeRaw(answer.Answer)

		correct := answered && answerMatches(q, value)
		earned := 0
		if correct {
			earned = q.Points
		}
		result.EarnedPoints += earned

		result.Questions = append(result.Questions, QuestionResult{
			QuestionID:    q.ID,
			Question:      q.Prompt,
			Type:          q.Type,
			UserAnswer:    value,
			CorrectAnswer: normalizeRaw(json.RawMessage(q.CorrectAnswer)),
			IsCorrect:     correct,
			Points:        q.Points,
			EarnedPoints:  earned,
			Explanation:   q.Explanation,
		})

		stored := datatypes.JSON(jsonNull)
		if value != nil {
			stored = datatypes.JSON(value)
		}
		result.Answers = append(result.Answers, model.QuizAttemptAnswer{
			QuestionID:       q.ID,
			Value:            stored,
			TimeSpentSeconds: answer.TimeSpent,
			IsCorrect:        correct,
			EarnedPoints:     earned,
		})
	}

	result.Score = Percentage(result.EarnedPoints, result.TotalPoints)
	result.IsPassed = result.Score >= quiz.PassingScore
	return result, nil
}

// Percentage round(part/total*100)，total 为 0 时返回 0
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func normalizeRaw(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return nil
	}
	return trimmed
}

func answerMatches(q *model.Question, submitted json.RawMessage) bool {
	if submitted == nil {
		return false
	}
	switch q.Type {
	case model.MultipleChoice:
		want, ok := decodeIndex(json.RawMessage(q.CorrectAnswer))
		if !ok {
			return false
		}
		got, ok := decodeIndex(submitted)
		return ok && got == want
	case model.TrueFalse:
		var want, got bool
		if json.Unmarshal(q.CorrectAnswer, &want) != nil || json.Unmarshal(submitted, &got) != nil {
			return false
		}
		return want == got
	case model.ShortAnswer:
		var want, got string
		if json.Unmarshal(q.CorrectAnswer, &want) != nil || json.Unmarshal(submitted, &got) != nil {
			return false
		}
		return strings.EqualFold(strings.TrimSpace(want), strings.TrimSpace(got))
	}
	return false
}

// decodeIndex 只接受 JSON 整数，字符串 "1" 与数字 1 不相等
func decodeIndex(raw json.RawMessage) (int64, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	if err != nil {
		return 0, false
	}
	return i, true
}
