package model

// ForgedModule 已生成学习模块的归档索引。模块正文以JSON对象形式
// 存放在对象存储中，这里只保留检索所需的元数据。
// swagger:model ForgedModule
type ForgedModule struct {
	UUIDBase
	Topic     string `gorm:"size:255;not null" json:"topic"`
	ObjectKey string `gorm:"size:255;not null" json:"objectKey"`
	CreatedBy uint   `gorm:"index" json:"createdBy"`
}

func (ForgedModule) TableName() string {
	return "forged_modules"
}
