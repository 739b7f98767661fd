package repository

import (
	"questforge_backend/internal/model"

	"gorm.io/gorm"
)

type KingdomRepository struct {
	DB *gorm.DB
}

func NewKingdomRepository(db *gorm.DB) *KingdomRepository {
	return &KingdomRepository{DB: db}
}

func (r *KingdomRepository) CountApplications(status model.ApplicationStatus) (int64, error) {
	var count int64
	err := r.DB.Model(&model.CitizenApplication{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

func (r *KingdomRepository) ActiveWars() ([]model.TeamWar, error) {
	var wars []model.TeamWar
	err := r.DB.Where("active = ?", true).Find(&wars).Error
	return wars, err
}
