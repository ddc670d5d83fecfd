// Package domain contains persistence models for tutor payouts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PayoutStatus represents payout lifecycle states. Disbursement marks rows
// paid; the billing subsystem only creates and recomputes pending rows.
type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusPaid    PayoutStatus = "paid"
)

// TutorInvoice is the monthly payout owed to a tutor for one class: the
// tutor's share of the student fees actually collected in the payment period.
// The unique index on (tutor_id, class_id, payment_period) lets re-runs
// recompute the amount in place instead of stacking duplicate rows.
type TutorInvoice struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TutorID       snowflake.ID `gorm:"not null;index;uniqueIndex:ux_tutor_invoices_tutor_class_period"`
	ClassID       snowflake.ID `gorm:"not null;index;uniqueIndex:ux_tutor_invoices_tutor_class_period"`
	PaymentPeriod string       `gorm:"type:text;not null;index;uniqueIndex:ux_tutor_invoices_tutor_class_period"`
	PaidCount     int64        `gorm:"not null"`
	Amount        int64        `gorm:"not null"`
	Status        PayoutStatus `gorm:"type:text;not null;default:'pending'"`
	PaymentURL    string       `gorm:"type:text"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TutorInvoice) TableName() string { return "tutor_invoices" }
