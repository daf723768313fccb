package model

// swagger:model Course
type Course struct {
	BaseModel
	Title        string   `gorm:"size:255;not null" json:"title"`
	Description  string   `gorm:"type:text" json:"description"`
	InstructorID uint     `gorm:"index" json:"instructorId"`
	Lessons      []Lesson `gorm:"foreignKey:CourseID" json:"lessons,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// swagger:model Lesson
type Lesson struct {
	BaseModel
	CourseID        uint   `gorm:"index;not null" json:"courseId"`
	Title           string `gorm:"size:255;not null" json:"title"`
	Description     string `gorm:"type:text" json:"description"`
	DurationSeconds int    `json:"durationSeconds"`
	SortOrder       int    `gorm:"column:sort_order;not null" json:"order"`
	IsPreview       bool   `json:"isPreview"`
}

func (Lesson) TableName() string {
	return "lessons"
}
