package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleUser      Role = "user"
	RoleParalegal Role = "paralegal"
	RoleLawyer    Role = "lawyer"
)

// ProcedureStatus defines lifecycle states for a collection procedure.
// Transitions are one-directional; see internal/procedures/statemachine.go.
type ProcedureStatus string

const (
	ProcedureDraft              ProcedureStatus = "DRAFT"
	ProcedureNew                ProcedureStatus = "NEW"
	ProcedureInjonctionDemandee ProcedureStatus = "INJONCTION_DE_PAIEMENT_DEMANDEE"
	ProcedureInjonctionPayer    ProcedureStatus = "INJONCTION_DE_PAIEMENT_PAYER"
	ProcedureSent               ProcedureStatus = "SENT"
)

// PaymentStatus mirrors the Stripe-side state of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentOpen      PaymentStatus = "OPEN"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// DocumentType classifies uploaded files.
type DocumentType string

const (
	DocumentContract     DocumentType = "contract"
	DocumentUnpaidProof  DocumentType = "unpaid_proof"
	DocumentReminder     DocumentType = "reminder"
	DocumentMergedNotice DocumentType = "merged_notice"
	DocumentInvoice      DocumentType = "invoice"
	DocumentOther        DocumentType = "other"
)

// SubscriptionStatus mirrors Stripe's subscription state; the canonical
// value always lives at Stripe and is synchronized, never computed here.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionTrialing SubscriptionStatus = "TRIALING"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
	SubscriptionUnpaid   SubscriptionStatus = "UNPAID"
)

/* =============================== Entities =============================== */

// User represents an end user, paralegal or lawyer. Users are created on
// their first verification-code request and are never hard-deleted.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Company   string    `json:"company"`
	Role      Role      `gorm:"type:varchar(20);not null;default:'user'" json:"role"`

	// Stripe billing-customer linkage (at most one per user)
	StripeCustomerID *string `gorm:"uniqueIndex:ux_user_customer_filled" json:"-"`

	// Passwordless login: bcrypt hash of the last emailed 6-digit code
	VerificationCode string     `json:"-"`
	CodeExpiresAt    *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Procedure is a debt-collection matter tracked through a status lifecycle.
type Procedure struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	LawyerID  *uuid.UUID `gorm:"type:uuid;index" json:"lawyer_id"`
	Reference string     `gorm:"not null" json:"reference"`

	Status ProcedureStatus `gorm:"type:varchar(40);not null;default:'DRAFT'" json:"status"`

	// Amounts in cents to avoid float issues
	PrincipalCents int64 `gorm:"not null" json:"principal_cents"`
	PenaltyCents   int64 `json:"penalty_cents"`

	// Set only after Stripe confirms a successful payment (1:1)
	PaymentID *uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_proc_payment_filled" json:"payment_id"`

	// Formal notice (LRAR) dispatch marker; nil until sent
	LrarSentAt *time.Time `json:"lrar_sent_at"`

	// Relations
	Debtor    Debtor     `json:"debtor"`
	Documents []Document `json:"documents,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Procedure) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Debtor is the party a procedure collects from (1:1 with the procedure).
type Debtor struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProcedureID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"procedure_id"`
	Name        string    `gorm:"not null" json:"name"`
	Siren       string    `gorm:"type:varchar(9)" json:"siren"`
	Email       string    `json:"email"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"created_at"`
}

func (d *Debtor) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Payment is a local mirror of one Stripe payment attempt. Status moves to
// SUCCEEDED/FAILED only after server-side verification against Stripe.
type Payment struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	ProcedureID *uuid.UUID `gorm:"type:uuid;uniqueIndex:ux_pay_procedure_filled" json:"procedure_id"`

	AmountCents int64         `gorm:"not null" json:"amount_cents"`
	Currency    string        `gorm:"type:varchar(3);not null;default:'eur'" json:"currency"`
	Status      PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`

	StripeSessionID *string        `gorm:"uniqueIndex:ux_pay_session_filled" json:"-"`
	StripeIntentID  *string        `gorm:"uniqueIndex:ux_pay_intent_filled" json:"-"`
	StripeChargeID  *string        `json:"-"`
	Metadata        datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Document is a file attached to a procedure. Invoice documents may never
// be deleted (business rule enforced in the handler).
type Document struct {
	ID          uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ProcedureID uuid.UUID    `gorm:"type:uuid;not null;index" json:"procedure_id"`
	UserID      uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	Type        DocumentType `gorm:"type:varchar(30);not null" json:"type"`

	FileName string `gorm:"not null" json:"file_name"`
	FilePath string `gorm:"not null" json:"file_path"` // public URL
	Key      string `gorm:"not null" json:"-"`         // storage object key
	FileSize int64  `gorm:"not null" json:"file_size"`
	MimeType string `gorm:"not null" json:"mime_type"`

	InvoiceNumber string `json:"invoice_number,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	Procedure Procedure `gorm:"foreignKey:ProcedureID;references:ID" json:"-"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Subscription mirrors a Stripe recurring-billing object.
type Subscription struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	StripeSubscriptionID string             `gorm:"uniqueIndex;not null" json:"-"`
	StripeCustomerID     string             `gorm:"not null" json:"-"`
	PriceID              string             `json:"price_id"`
	Status               SubscriptionStatus `gorm:"type:varchar(20);not null" json:"status"`
	CurrentPeriodStart   time.Time          `json:"current_period_start"`
	CurrentPeriodEnd     time.Time          `json:"current_period_end"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ProcedureHistory is an audit log entry for important procedure changes.
type ProcedureHistory struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProcedureID uuid.UUID       `gorm:"type:uuid;not null;index"`
	ActorID     uuid.UUID       `gorm:"type:uuid;not null;index"`  // who performed the action (user/lawyer/system)
	Action      string          `gorm:"type:varchar(50);not null"` // e.g. created, payment_confirmed, injonction_requested, lrar_sent
	OldStatus   ProcedureStatus `gorm:"type:varchar(40)"`
	NewStatus   ProcedureStatus `gorm:"type:varchar(40)"`
	Reason      string          `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
}

func (h *ProcedureHistory) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
