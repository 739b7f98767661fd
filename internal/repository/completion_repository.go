package repository

import (
	"questforge_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type CompletionRepository struct {
	DB *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{DB: db}
}

// Insert 依赖(user_id, quest_id)唯一索引做原子的查重加插入。
// 重复提交返回gorm.ErrDuplicatedKey，由调用方解释为已完成而不是错误，
// 避免先查后插在并发提交下的竞态。
func (r *CompletionRepository) Insert(rec *model.CompletionRecord) error {
	if rec.CompletedAt.IsZero() {
		rec.CompletedAt = time.Now()
	}
	return r.DB.Create(rec).Error
}

func (r *CompletionRepository) SumXPByUser(userID uint) (int, error) {
	var total int64
	err := r.DB.Model(&model.CompletionRecord{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(xp_awarded), 0)").
		Scan(&total).Error
	return int(total), err
}

func (r *CompletionRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.CompletionRecord{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// FindCompletionTimes 按时间倒序返回用户全部完成时间，用于连续天数计算
func (r *CompletionRepository) FindCompletionTimes(userID uint) ([]time.Time, error) {
	var times []time.Time
	err := r.DB.Model(&model.CompletionRecord{}).
		Where("user_id = ?", userID).
		Order("completed_at DESC").
		Pluck("completed_at", &times).Error
	return times, err
}

// LastCompletionAt 用户最近一次完成时间，决定同分时的排位先后
func (r *CompletionRepository) LastCompletionAt(userID uint) (time.Time, error) {
	var rec model.CompletionRecord
	err := r.DB.Where("user_id = ?", userID).
		Order("completed_at DESC").
		First(&rec).Error
	if err != nil {
		return time.Time{}, err
	}
	return rec.CompletedAt, nil
}

// LeaderboardRow 排行榜投影行。reached_at只参与排序，不出现在投影里。
type LeaderboardRow struct {
	UserID  uint   `json:"userId"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
	TotalXP int    `json:"totalXp"`
}

// LeaderboardRows 按总经验降序；同分时先达到者在前（最近一条记录时间更早），
// 保证相同数据下排序可复现。
func (r *CompletionRepository) LeaderboardRows(limit int) ([]LeaderboardRow, error) {
	var rows []LeaderboardRow
	err := r.DB.Table("completion_records cr").
		Select("cr.user_id AS user_id, u.name AS name, u.avatar AS avatar, SUM(cr.xp_awarded) AS total_xp, MAX(cr.completed_at) AS reached_at").
		Joins("JOIN users u ON u.id = cr.user_id").
		Where("cr.deleted_at IS NULL AND u.deleted_at IS NULL").
		Group("cr.user_id, u.name, u.avatar").
		Order("total_xp DESC, reached_at ASC, user_id ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// RankOfUser 返回与排行榜同一排序口径下的名次（从1开始）
func (r *CompletionRepository) RankOfUser(totalXP int, reachedAt time.Time) (int, error) {
	var ahead int64
	err := r.DB.Raw(`
		SELECT COUNT(*) FROM (
			SELECT cr.user_id, SUM(cr.xp_awarded) AS total_xp, MAX(cr.completed_at) AS reached_at
			FROM completion_records cr
			WHERE cr.deleted_at IS NULL
			GROUP BY cr.user_id
		) t
		WHERE t.total_xp > ? OR (t.total_xp = ? AND t.reached_at < ?)`,
		totalXP, totalXP, reachedAt).Scan(&ahead).Error
	return int(ahead) + 1, err
}
