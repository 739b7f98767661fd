package model

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// CitizenApplication 入城申请，王国健康报告统计其各状态数量。
// swagger:model CitizenApplication
type CitizenApplication struct {
	BaseModel
	UserID     uint              `gorm:"index;not null" json:"userId"`
	Motivation string            `gorm:"type:text" json:"motivation"`
	Status     ApplicationStatus `gorm:"size:20;default:'pending'" json:"status"`
}

func (CitizenApplication) TableName() string {
	return "citizen_applications"
}

// Team 战队。
// swagger:model Team
type Team struct {
	BaseModel
	Name   string `gorm:"size:100;unique;not null" json:"name"`
	Banner string `gorm:"size:255" json:"banner"`
}

func (Team) TableName() string {
	return "teams"
}

// TeamWar 进行中的战队对抗，实时比分供战报聚合使用。
// swagger:model TeamWar
type TeamWar struct {
	BaseModel
	AttackerTeamID uint `gorm:"not null" json:"attackerTeamId"`
	DefenderTeamID uint `gorm:"not null" json:"defenderTeamId"`
	AttackerScore  int  `gorm:"default:0" json:"attackerScore"`
	DefenderScore  int  `gorm:"default:0" json:"defenderScore"`
	Active         bool `gorm:"default:true;index" json:"active"`
}

func (TeamWar) TableName() string {
	return "team_wars"
}
