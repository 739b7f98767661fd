package repository

import (
	"questforge_backend/internal/model"

	"gorm.io/gorm"
)

type ModuleRepository struct {
	DB *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: db}
}

func (r *ModuleRepository) Create(module *model.ForgedModule) error {
	return r.DB.Create(module).Error
}

func (r *ModuleRepository) FindByID(id string) (*model.ForgedModule, error) {
	var module model.ForgedModule
	err := r.DB.Where("id = ?", id).First(&module).Error
	if err != nil {
		return nil, err
	}
	return &module, nil
}

func (r *ModuleRepository) ListRecent(limit int) ([]model.ForgedModule, error) {
	var modules []model.ForgedModule
	err := r.DB.Order("created_at DESC").Limit(limit).Find(&modules).Error
	return modules, err
}
