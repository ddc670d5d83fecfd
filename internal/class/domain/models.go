// Package domain contains persistence models for classes and their sessions.
// Both are owned by class management; billing reads them only.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ClassStatus represents class lifecycle states.
type ClassStatus string

const (
	ClassStatusActive   ClassStatus = "active"
	ClassStatusInactive ClassStatus = "inactive"
)

// Class is a tutored course with a monthly fee.
type Class struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	TutorID   snowflake.ID `gorm:"not null;index"`
	Name      string       `gorm:"type:text;not null"`
	Fee       int64        `gorm:"not null"`
	Status    ClassStatus  `gorm:"type:text;not null;default:'active'"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Class) TableName() string { return "classes" }

// ClassSession is a single scheduled meeting of a class.
type ClassSession struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	ClassID  snowflake.ID `gorm:"not null;index"`
	StartsAt time.Time    `gorm:"not null;index"`
	EndsAt   time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (ClassSession) TableName() string { return "class_sessions" }
