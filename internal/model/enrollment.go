package model

type EnrollmentStatus string

const (
	EnrollmentActive    EnrollmentStatus = "active"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	UserID   uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course,priority:1" json:"userId"`
	CourseID uint             `gorm:"not null;uniqueIndex:idx_enrollment_user_course,priority:2" json:"courseId"`
	Status   EnrollmentStatus `gorm:"size:20;not null" json:"status"`
	IsActive bool             `gorm:"not null" json:"isActive"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
