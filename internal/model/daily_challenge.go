package model

type ChallengeCategory string

const (
	Riddle       ChallengeCategory = "riddle"
	QuickQuiz    ChallengeCategory = "quick_quiz"
	LogicPuzzle  ChallengeCategory = "logic_puzzle"
	LoreQuestion ChallengeCategory = "lore_question"
)

// DailyChallenge 每日一题，按日历日期唯一。生成一次，读取多次，评卷多次。
// swagger:model DailyChallenge
type DailyChallenge struct {
	BaseModel
	ChallengeDate string            `gorm:"size:10;not null;uniqueIndex" json:"challengeDate"` // 2006-01-02
	Category      ChallengeCategory `gorm:"size:20;not null" json:"category"`
	Title         string            `gorm:"size:255;not null" json:"title"`
	Description   string            `gorm:"type:text;not null" json:"description"`
	Reward        string            `gorm:"size:32;not null" json:"reward"` // "<整数> XP"
}

func (DailyChallenge) TableName() string {
	return "daily_challenges"
}
