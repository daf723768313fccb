package service

import "course_engine_backend/internal/model"

type LessonRef struct {
	ID        uint
	IsPreview bool
}

type LessonAccess struct {
	LessonID         uint  `json:"lessonId"`
	CanAccess        bool  `json:"canAccess"`
	IsCompleted      bool  `json:"isCompleted"`
	NextLessonID     *uint `json:"nextLessonId"`
	PreviousLessonID *uint `json:"previousLessonId"`
}

func LessonRefs(lessons []model.Lesson) []LessonRef {
	refs := make([]LessonRef, len(lessons))
	for i, l := range lessons {
		refs[i] = LessonRef{ID: l.ID, IsPreview: l.IsPreview}
	}
	return refs
}

// ResolveAccess 第一课与试看课始终可访问，其余课时需前一课已完成
func ResolveAccess(lessons []LessonRef, completed map[uint]bool) []LessonAccess {
	out := make([]LessonAccess, len(lessons))
	for i, l := range lessons {
		access := LessonAccess{
			LessonID:    l.ID,
			IsCompleted: completed[l.ID],
			CanAccess:   i == 0 || l.IsPreview || completed[lessons[i-1].ID],
		}
		if i > 0 {
			prev := lessons[i-1].ID
			access.PreviousLessonID = &prev
		}
		if i+1 < len(lessons) {
			next := lessons[i+1].ID
			access.NextLessonID = &next
		}
		out[i] = access
	}
	return out
}

// CompletedInCourse 已完成集合与课程当前课时的交集，按课时顺序返回
func CompletedInCourse(lessons []model.Lesson, completed map[uint]bool) []uint {
	out := []uint{}
	for _, l := range lessons {
		if completed[l.ID] {
			out = append(out, l.ID)
		}
	}
	return out
}
