package repository

import (
	"questforge_backend/internal/model"

	"gorm.io/gorm"
)

type ChallengeRepository struct {
	DB *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) *ChallengeRepository {
	return &ChallengeRepository{DB: db}
}

func (r *ChallengeRepository) Create(challenge *model.DailyChallenge) error {
	return r.DB.Create(challenge).Error
}

// FindByDate date格式为2006-01-02，每天至多一条
func (r *ChallengeRepository) FindByDate(date string) (*model.DailyChallenge, error) {
	var challenge model.DailyChallenge
	err := r.DB.Where("challenge_date = ?", date).First(&challenge).Error
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}
