package model

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// CanManageCourses 教师与管理员可维护测验并查看答案
func (r UserRole) CanManageCourses() bool {
	return r == Teacher || r == Admin
}
