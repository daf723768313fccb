package repository

import (
	"context"
	"course_engine_backend/internal/model"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AchievementRepository struct {
	DB *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{DB: db}
}

func (r *AchievementRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Achievement, error) {
	var achievements []model.Achievement
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("earned_at desc").
		Order("id desc").
		Find(&achievements).Error
	if err != nil {
		return nil, err
	}
	return achievements, nil
}

func (r *AchievementRepository) Exists(ctx context.Context, userID uint, t model.AchievementType, scopeKey string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Achievement{}).
		Where("user_id = ? AND type = ? AND scope_key = ?", userID, t, scopeKey).
		Count(&count).Error
	return count > 0, err
}

// CreateIfAbsent 依赖唯一索引插入；已存在（包括并发插入失败的一方）返回 false 且不报错
func (r *AchievementRepository) CreateIfAbsent(ctx context.Context, achievement *model.Achievement) (bool, error) {
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(achievement)
	if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
