package models

import "time"

// Project groups defects under one manager and one customer.
type Project struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:256;not null"`
	Description string `gorm:"type:text"`
	ManagerID   uint   `gorm:"not null;index"`
	CustomerID  uint   `gorm:"not null;index"`
	Active      bool   `gorm:"default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Manager  User `gorm:"foreignKey:ManagerID"`
	Customer User `gorm:"foreignKey:CustomerID"`
}
