package model

import (
	"fmt"
	"time"
)

// Department - подразделение, обрабатывающее персональные данные.
type Department string

// Допустимые подразделения.
const (
	DepartmentHumanResources Department = "Human Resources"
	DepartmentITIS           Department = "IT/IS"
	DepartmentAdmission      Department = "Admission"
	DepartmentMarketing      Department = "Marketing"
)

// Departments - все допустимые подразделения в порядке отображения.
var Departments = []Department{
	DepartmentHumanResources,
	DepartmentITIS,
	DepartmentAdmission,
	DepartmentMarketing,
}

// Valid проверяет, что значение входит в перечисление.
func (d Department) Valid() bool {
	for _, v := range Departments {
		if d == v {
			return true
		}
	}
	return false
}

// ParseDepartment преобразует строку в Department с проверкой.
func ParseDepartment(s string) (Department, error) {
	d := Department(s)
	if !d.Valid() {
		return "", fmt.Errorf("недопустимое подразделение %q", s)
	}
	return d, nil
}

// DataSubjectType - категория субъектов персональных данных.
type DataSubjectType string

// Допустимые категории субъектов.
const (
	DataSubjectEmployees    DataSubjectType = "Employees"
	DataSubjectFacultyStaff DataSubjectType = "Faculty Staff"
	DataSubjectStudents     DataSubjectType = "Students"
)

// DataSubjectTypes - все допустимые категории субъектов.
var DataSubjectTypes = []DataSubjectType{
	DataSubjectEmployees,
	DataSubjectFacultyStaff,
	DataSubjectStudents,
}

// Valid проверяет, что значение входит в перечисление.
func (t DataSubjectType) Valid() bool {
	for _, v := range DataSubjectTypes {
		if t == v {
			return true
		}
	}
	return false
}

// ParseDataSubjectType преобразует строку в DataSubjectType с проверкой.
func ParseDataSubjectType(s string) (DataSubjectType, error) {
	t := DataSubjectType(s)
	if !t.Valid() {
		return "", fmt.Errorf("недопустимый тип субъекта данных %q", s)
	}
	return t, nil
}

// Creator - облегчённая проекция автора записи для ответов list/get.
type Creator struct {
	ID    string
	Name  string
	Email string
}

// DataRecord - запись реестра обработки персональных данных.
// Хранится в таблице data_records.
type DataRecord struct {
	// ID - UUID записи
	ID string
	// Title - заголовок (обязателен)
	Title string
	// Description - описание (опционально)
	Description *string
	// Department - ответственное подразделение
	Department Department
	// DataSubjectTypes - категории субъектов (может быть пустым)
	DataSubjectTypes []DataSubjectType
	// CreatedBy - UUID пользователя-автора
	CreatedBy string
	// Creator - проекция автора (заполняется при чтении, может быть nil)
	Creator *Creator
	// CreatedAt - время создания
	CreatedAt time.Time
	// UpdatedAt - время последнего обновления
	UpdatedAt time.Time
}

// OwnedBy проверяет, что запись создана указанным пользователем.
// Сравнение по каноническому строковому представлению UUID.
func (r *DataRecord) OwnedBy(userID string) bool {
	return CanonicalID(r.CreatedBy) == CanonicalID(userID)
}
