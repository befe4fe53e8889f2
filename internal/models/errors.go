package models

import "errors"

// Ошибки валидации: исправляются вызывающей стороной, повтор не нужен.
var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNotPurchasable = errors.New("content is not purchasable")
	ErrSelfTarget     = errors.New("payer cannot target own creator account")
	ErrInvalidKind    = errors.New("invalid transaction kind")
	ErrInvalidStatus  = errors.New("invalid settlement status")
)

// Конфликты: окончательный отказ, автоматический повтор создал бы дубль.
var (
	ErrAlreadySubscribed     = errors.New("already subscribed")
	ErrAlreadyPurchased      = errors.New("already purchased")
	ErrConflictingSettlement = errors.New("conflicting settlement")
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// IsValidation сообщает, является ли ошибка ошибкой валидации.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNotPurchasable) ||
		errors.Is(err, ErrSelfTarget) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidStatus)
}

// IsConflict сообщает, является ли ошибка конфликтом.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadySubscribed) ||
		errors.Is(err, ErrAlreadyPurchased) ||
		errors.Is(err, ErrConflictingSettlement)
}

// IsNotFound сообщает, не найдена ли сущность.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
