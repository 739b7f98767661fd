package database

import (
	"fmt"
	"log"
	"questforge_backend/internal/config"
	"questforge_backend/internal/model"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.Charset,
		cfg.ParseTime,
	)

	// TranslateError让唯一索引冲突统一映射为gorm.ErrDuplicatedKey，
	// 进度账本依赖这一点区分重复提交和真实错误。
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Info),
		TranslateError: true,
	})

	if err != nil {
		return nil, err
	}

	log.Println("Database connection established")

	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.CompletionRecord{},
		&model.DailyChallenge{},
		&model.ForgedModule{},
		&model.CitizenApplication{},
		&model.Team{},
		&model.TeamWar{},
	)
}
