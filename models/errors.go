package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError is returned for malformed input; nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field string, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Entity string
	Id     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.Id)
}

func NewNotFoundError(entity string, id int) error {
	return &NotFoundError{Entity: entity, Id: id}
}

// InvalidStateError means the entity's current status does not allow the operation.
type InvalidStateError struct {
	Entity  EntityKind
	Id      int
	From    string
	To      string
	Message string
}

func (e *InvalidStateError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %d cannot move from %q to %q", e.Entity, e.Id, e.From, e.To)
}

// ConflictError covers duplicate submissions and repeated approvals.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

func NewConflictError(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

type OverReceiptError struct {
	ProductId       int
	Ordered         decimal.Decimal
	AlreadyReceived decimal.Decimal
	Requested       decimal.Decimal
}

func (e *OverReceiptError) Remaining() decimal.Decimal {
	remaining := e.Ordered.Sub(e.AlreadyReceived)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func (e *OverReceiptError) Error() string {
	return fmt.Sprintf("over-receipt for product %d: ordered %s, already received %s, requested %s, remaining allowance %s",
		e.ProductId, e.Ordered.String(), e.AlreadyReceived.String(), e.Requested.String(), e.Remaining().String())
}

type OverRefundError struct {
	SaleId          int
	Total           decimal.Decimal
	AlreadyRefunded decimal.Decimal
	Requested       decimal.Decimal
}

func (e *OverRefundError) Remaining() decimal.Decimal {
	remaining := e.Total.Sub(e.AlreadyRefunded)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

func (e *OverRefundError) Error() string {
	return fmt.Sprintf("refund of %s exceeds remaining refundable amount %s for sale %d (total %s, already refunded %s)",
		e.Requested.String(), e.Remaining().String(), e.SaleId, e.Total.String(), e.AlreadyRefunded.String())
}

// InsufficientStockError is raised when an outbound movement would take
// on-hand stock below zero or below what is reserved.
type InsufficientStockError struct {
	ProductId  int
	LocationId int
	Available  decimal.Decimal
	Requested  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d at location %d: available %s, requested %s",
		e.ProductId, e.LocationId, e.Available.String(), e.Requested.String())
}
