// Package domain contains persistence models for student invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// InvoiceStatus represents invoice lifecycle states. Transitions from issued
// to paid or rejected are owned by the payment-verification flow; the billing
// subsystem only ever creates issued invoices.
type InvoiceStatus string

const (
	InvoiceStatusIssued   InvoiceStatus = "issued"
	InvoiceStatusPaid     InvoiceStatus = "paid"
	InvoiceStatusRejected InvoiceStatus = "rejected"
)

// Invoice bills one student for one class for one calendar month. The unique
// index on (student_id, class_id, invoice_period) makes generation idempotent
// even under concurrent batch runs.
type Invoice struct {
	ID            snowflake.ID  `gorm:"primaryKey"`
	StudentID     snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_invoices_student_class_period"`
	ClassID       snowflake.ID  `gorm:"not null;index;uniqueIndex:ux_invoices_student_class_period"`
	InvoiceNo     string        `gorm:"type:text;not null"`
	InvoicePeriod string        `gorm:"type:text;not null;index;uniqueIndex:ux_invoices_student_class_period"`
	Amount        int64         `gorm:"not null"`
	InvoiceDate   time.Time     `gorm:"not null"`
	DueDate       time.Time     `gorm:"not null"`
	Status        InvoiceStatus `gorm:"type:text;not null;default:'issued'"`
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }
