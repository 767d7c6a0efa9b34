package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a missing primary key before insert so rows carry their id
// regardless of the database default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (l *Listing) BeforeCreate(*gorm.DB) error          { assignID(&l.ID); return nil }
func (o *Order) BeforeCreate(*gorm.DB) error            { assignID(&o.ID); return nil }
func (i *OrderLineItem) BeforeCreate(*gorm.DB) error    { assignID(&i.ID); return nil }
func (e *OrderStatusEvent) BeforeCreate(*gorm.DB) error { assignID(&e.ID); return nil }
func (e *PaymentEvent) BeforeCreate(*gorm.DB) error     { assignID(&e.ID); return nil }
func (s *Settlement) BeforeCreate(*gorm.DB) error       { assignID(&s.ID); return nil }
func (p *PayoutMethod) BeforeCreate(*gorm.DB) error     { assignID(&p.ID); return nil }
func (r *Review) BeforeCreate(*gorm.DB) error           { assignID(&r.ID); return nil }
func (n *Notification) BeforeCreate(*gorm.DB) error     { assignID(&n.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error      { assignID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error        { assignID(&d.ID); return nil }
