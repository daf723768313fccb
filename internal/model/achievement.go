package model

import (
	"fmt"
	"time"
)

type AchievementType string

const (
	AchievementCourseCompletion AchievementType = "course_completion"
	AchievementFirstCourse      AchievementType = "first_course"
	AchievementFastLearner      AchievementType = "fast_learner"
)

// CourseScoped 该类型是否按课程去重
func (t AchievementType) CourseScoped() bool {
	switch t {
	case AchievementCourseCompletion, AchievementFastLearner:
		return true
	}
	return false
}

const GlobalScope = "global"

// AchievementScope 唯一索引使用的作用域键；course_id 可为空，不能直接参与唯一约束
func AchievementScope(t AchievementType, courseID uint) string {
	if t.CourseScoped() {
		return fmt.Sprintf("course:%d", courseID)
	}
	return GlobalScope
}

// swagger:model Achievement
type Achievement struct {
	ID          uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint            `gorm:"not null;uniqueIndex:idx_achievement_scope,priority:1" json:"userId"`
	CourseID    *uint           `gorm:"index" json:"courseId,omitempty"`
	Type        AchievementType `gorm:"size:32;not null;uniqueIndex:idx_achievement_scope,priority:2" json:"type"`
	ScopeKey    string          `gorm:"size:64;not null;uniqueIndex:idx_achievement_scope,priority:3" json:"-"`
	Title       string          `gorm:"size:255;not null" json:"title"`
	Description string          `gorm:"size:500;not null" json:"description"`
	BadgeURL    string          `gorm:"size:500" json:"badgeUrl,omitempty"`
	EarnedAt    time.Time       `gorm:"not null;index" json:"earnedAt"`
}

func (Achievement) TableName() string {
	return "achievements"
}
