package repository

import (
	"context"
	"course_engine_backend/internal/model"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CourseRepository 课程目录，课时列表可选 Redis 读穿缓存
type CourseRepository struct {
	DB       *gorm.DB
	Redis    *redis.Client
	CacheTTL time.Duration
}

func NewCourseRepository(db *gorm.DB, rdb *redis.Client, ttl time.Duration) *CourseRepository {
	return &CourseRepository{DB: db, Redis: rdb, CacheTTL: ttl}
}

func lessonsCacheKey(courseID uint) string {
	return fmt.Sprintf("course:%d:lessons", courseID)
}

func (r *CourseRepository) Create(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

func (r *CourseRepository) CreateLesson(ctx context.Context, lesson *model.Lesson) error {
	if err := r.DB.WithContext(ctx).Create(lesson).Error; err != nil {
		return err
	}
	r.InvalidateLessons(ctx, lesson.CourseID)
	return nil
}

func (r *CourseRepository) GetCourse(ctx context.Context, courseID uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: course %d", util.ErrNotFound, courseID)
	}
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) GetLesson(ctx context.Context, lessonID uint) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.DB.WithContext(ctx).First(&lesson, lessonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: lesson %d", util.ErrNotFound, lessonID)
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// OrderedLessons 按 sort_order、id 排序的课时列表
func (r *CourseRepository) OrderedLessons(ctx context.Context, courseID uint) ([]model.Lesson, error) {
	if lessons, ok := r.cachedLessons(ctx, courseID); ok {
		return lessons, nil
	}

	var lessons []model.Lesson
	err := r.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("sort_order asc").
		Order("id asc").
		Find(&lessons).Error
	if err != nil {
		return nil, err
	}

	r.cacheLessons(ctx, courseID, lessons)
	return lessons, nil
}

func (r *CourseRepository) TotalLessons(ctx context.Context, courseID uint) (int, error) {
	if lessons, ok := r.cachedLessons(ctx, courseID); ok {
		return len(lessons), nil
	}
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).Where("course_id = ?", courseID).Count(&count).Error
	return int(count), err
}

func (r *CourseRepository) InvalidateLessons(ctx context.Context, courseID uint) {
	if r.Redis == nil {
		return
	}
	if err := r.Redis.Del(ctx, lessonsCacheKey(courseID)).Err(); err != nil {
		logger.Log.Warn("failed to invalidate lesson cache", zap.Uint("courseId", courseID), zap.Error(err))
	}
}

func (r *CourseRepository) cachedLessons(ctx context.Context, courseID uint) ([]model.Lesson, bool) {
	if r.Redis == nil {
		return nil, false
	}
	data, err := r.Redis.Get(ctx, lessonsCacheKey(courseID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("lesson cache read failed", zap.Uint("courseId", courseID), zap.Error(err))
		}
		return nil, false
	}
	var lessons []model.Lesson
	if err := json.Unmarshal(data, &lessons); err != nil {
		return nil, false
	}
	return lessons, true
}

func (r *CourseRepository) cacheLessons(ctx context.Context, courseID uint, lessons []model.Lesson) {
	if r.Redis == nil {
		return
	}
	data, err := json.Marshal(lessons)
	if err != nil {
		return
	}
	if err := r.Redis.Set(ctx, lessonsCacheKey(courseID), data, r.CacheTTL).Err(); err != nil {
		logger.Log.Warn("lesson cache write failed", zap.Uint("courseId", courseID), zap.Error(err))
	}
}
