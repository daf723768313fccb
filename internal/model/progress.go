package model

import (
	"math"
	"time"
)

// CourseProgress 每个 (user, course) 仅一条
// swagger:model CourseProgress
type CourseProgress struct {
	BaseModel
	UserID             uint       `gorm:"not null;uniqueIndex:idx_progress_user_course,priority:1;index:idx_progress_user_completed,priority:1" json:"userId"`
	CourseID           uint       `gorm:"not null;uniqueIndex:idx_progress_user_course,priority:2" json:"courseId"`
	CurrentLessonID    *uint      `json:"currentLessonId,omitempty"`
	ProgressPercentage int        `gorm:"not null;default:0" json:"progressPercentage"`
	TimeSpentMinutes   int        `gorm:"not null;default:0" json:"timeSpentMinutes"`
	LastAccessedAt     time.Time  `json:"lastAccessedAt"`
	IsCompleted        bool       `gorm:"not null;index:idx_progress_user_completed,priority:2" json:"isCompleted"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`

	CompletedLessons []uint `gorm:"-" json:"completedLessons"`
}

func (CourseProgress) TableName() string {
	return "course_progress"
}

// CompletedSet 已完成课时的成员集合
func (p *CourseProgress) CompletedSet() map[uint]bool {
	set := make(map[uint]bool, len(p.CompletedLessons))
	for _, id := range p.CompletedLessons {
		set[id] = true
	}
	return set
}

// CompletedLesson 已完成课时集合中的一个成员
type CompletedLesson struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint      `gorm:"not null;uniqueIndex:idx_completed_lesson,priority:1" json:"userId"`
	CourseID    uint      `gorm:"not null;uniqueIndex:idx_completed_lesson,priority:2" json:"courseId"`
	LessonID    uint      `gorm:"not null;uniqueIndex:idx_completed_lesson,priority:3" json:"lessonId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (CompletedLesson) TableName() string {
	return "course_progress_lessons"
}

// CompletionPercentage round(100*completed/total)，限制在 [0,100]，无课时的课程为 0
func CompletionPercentage(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}
