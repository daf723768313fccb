package repository

import (
	"context"
	"course_engine_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// LessonUpdate 一次课时进度上报
type LessonUpdate struct {
	UserID        uint
	CourseID      uint
	LessonID      uint
	Minutes       int
	MarkCompleted bool
	At            time.Time
}

var progressKey = []clause.Column{{Name: "user_id"}, {Name: "course_id"}}

// LessonUpdateResult 事务提交后的进度；CompletedNow 仅在本次事务完成课程跃迁时为 true
type LessonUpdateResult struct {
	Progress     *model.CourseProgress
	TotalLessons int
	CompletedNow bool
}

// ApplyLessonUpdate 在同一事务内完成时长累加、已完成集合插入、百分比重算与完成跃迁。
// 进度行在事务内加锁，百分比只来自本事务读到的计数
func (r *ProgressRepository) ApplyLessonUpdate(ctx context.Context, upd LessonUpdate) (*LessonUpdateResult, error) {
	result := &LessonUpdateResult{}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lessonID := upd.LessonID
		row := model.CourseProgress{
			UserID:           upd.UserID,
			CourseID:         upd.CourseID,
			CurrentLessonID:  &lessonID,
			TimeSpentMinutes: upd.Minutes,
			LastAccessedAt:   upd.At,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: progressKey,
			DoUpdates: clause.Assignments(map[string]interface{}{
				"current_lesson_id":  upd.LessonID,
				"last_accessed_at":   upd.At,
				"updated_at":         upd.At,
				"time_spent_minutes": gorm.Expr("course_progress.time_spent_minutes + ?", upd.Minutes),
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}

		var locked model.CourseProgress
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND course_id = ?", upd.UserID, upd.CourseID).
			First(&locked).Error; err != nil {
			return err
		}

		if upd.MarkCompleted {
			member := model.CompletedLesson{
				UserID:      upd.UserID,
				CourseID:    upd.CourseID,
				LessonID:    upd.LessonID,
				CompletedAt: upd.At,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
				return err
			}
		}

		var completed, total int64
		if err := completedInCourse(tx, upd.UserID, upd.CourseID).Count(&completed).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Lesson{}).Where("course_id = ?", upd.CourseID).Count(&total).Error; err != nil {
			return err
		}
		pct := model.CompletionPercentage(int(completed), int(total))

		transitioned, err := syncCompletion(tx, locked.ID, pct, upd.At)
		if err != nil {
			return err
		}

		progress, err := findProgress(tx, upd.UserID, upd.CourseID)
		if err != nil {
			return err
		}
		result.Progress = progress
		result.TotalLessons = int(total)
		result.CompletedNow = transitioned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// completedInCourse 已完成集合中仍属于该课程的课时
func completedInCourse(db *gorm.DB, userID, courseID uint) *gorm.DB {
	return db.Model(&model.CompletedLesson{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Where("lesson_id IN (?)", db.Model(&model.Lesson{}).Select("id").Where("course_id = ?", courseID))
}

// syncCompletion 须在持有进度行锁的事务内调用
func syncCompletion(tx *gorm.DB, progressID uint, percentage int, at time.Time) (bool, error) {
	if err := tx.Model(&model.CourseProgress{}).
		Where("id = ?", progressID).
		Update("progress_percentage", percentage).Error; err != nil {
		return false, err
	}

	if percentage >= 100 {
		res := tx.Model(&model.CourseProgress{}).
			Where("id = ? AND is_completed = ?", progressID, false).
			Updates(map[string]interface{}{"is_completed": true, "completed_at": at})
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected == 1, nil
	}

	// 课程新增课时后百分比可能回落
	err := tx.Model(&model.CourseProgress{}).
		Where("id = ? AND is_completed = ?", progressID, true).
		Updates(map[string]interface{}{"is_completed": false, "completed_at": nil}).Error
	return false, err
}

// FindOrCreate 首次访问时惰性创建空进度
func (r *ProgressRepository) FindOrCreate(ctx context.Context, userID, courseID uint, at time.Time) (*model.CourseProgress, error) {
	db := r.DB.WithContext(ctx)
	row := model.CourseProgress{UserID: userID, CourseID: courseID, LastAccessedAt: at}
	if err := db.Clauses(clause.OnConflict{Columns: progressKey, DoNothing: true}).Create(&row).Error; err != nil {
		return nil, err
	}
	return findProgress(db, userID, courseID)
}

// Find 不存在时返回零值进度（不落库）
func (r *ProgressRepository) Find(ctx context.Context, userID, courseID uint) (*model.CourseProgress, error) {
	progress, err := findProgress(r.DB.WithContext(ctx), userID, courseID)
	if err == gorm.ErrRecordNotFound {
		return &model.CourseProgress{UserID: userID, CourseID: courseID, CompletedLessons: []uint{}}, nil
	}
	return progress, err
}

func (r *ProgressRepository) CountCompletedCourses(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.CourseProgress{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Count(&count).Error
	return count, err
}

func findProgress(db *gorm.DB, userID, courseID uint) (*model.CourseProgress, error) {
	var progress model.CourseProgress
	if err := db.Where("user_id = ? AND course_id = ?", userID, courseID).First(&progress).Error; err != nil {
		return nil, err
	}
	lessons := []uint{}
	err := completedInCourse(db, userID, courseID).
		Order("id asc").
		Pluck("lesson_id", &lessons).Error
	if err != nil {
		return nil, err
	}
	progress.CompletedLessons = lessons
	return &progress, nil
}
