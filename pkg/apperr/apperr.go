// Package apperr — таксономия ошибок слоя синхронизации: коды, классификация
// retryable/permanent и стандартные sentinel-ошибки.
package apperr

import (
	"errors"
	"fmt"
)

// Code — стабильный строковый код ошибки (уходит в JSON-ответы и логи).
type Code string

const (
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeTimeout          Code = "TIMEOUT"
	CodeNetwork          Code = "NETWORK"
	CodeUnavailable      Code = "UNAVAILABLE"
	CodeOffline          Code = "OFFLINE"
	CodeStorageFull      Code = "STORAGE_FULL"
	CodeUnknownOperation Code = "UNKNOWN_OPERATION"
	CodeQueued           Code = "QUEUED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeUnknown          Code = "UNKNOWN"
)

// Classification — можно ли повторять операцию после такой ошибки.
type Classification string

const (
	ClassificationRetryable Classification = "RETRYABLE"
	ClassificationPermanent Classification = "PERMANENT"
)

var classifications = map[Code]Classification{
	CodeTimeout:     ClassificationRetryable,
	CodeNetwork:     ClassificationRetryable,
	CodeUnavailable: ClassificationRetryable,
	CodeOffline:     ClassificationRetryable,
	CodeStorageFull: ClassificationRetryable,
	CodeUnknown:     ClassificationRetryable,

	CodePermissionDenied: ClassificationPermanent,
	CodeInvalidArgument:  ClassificationPermanent,
	CodeUnknownOperation: ClassificationPermanent,
	CodeNotFound:         ClassificationPermanent,
	CodeQueued:           ClassificationPermanent,
}

// Error — ошибка с кодом. Сравнение через errors.Is идёт по коду,
// поэтому New(CodeTimeout, "...") совпадает с ErrTimeout.
type Error struct {
	code Code
	msg  string
	err  error
}

var (
	ErrPermissionDenied = New(CodePermissionDenied, "permission denied")
	ErrInvalidArgument  = New(CodeInvalidArgument, "invalid argument")
	ErrTimeout          = New(CodeTimeout, "operation timed out")
	ErrNetwork          = New(CodeNetwork, "network error")
	ErrUnavailable      = New(CodeUnavailable, "service unavailable")
	ErrOffline          = New(CodeOffline, "client is offline")
	ErrStorageFull      = New(CodeStorageFull, "durable storage quota exceeded")
	ErrUnknownOperation = New(CodeUnknownOperation, "unknown operation type")
	ErrQueued           = New(CodeQueued, "operation queued for background sync")
	ErrNotFound         = New(CodeNotFound, "not found")
)

func New(code Code, msg string) *Error {
	return &Error{code: code, msg: msg}
}

// Wrap — оборачивает err кодом; errors.Unwrap вернёт исходную ошибку.
func Wrap(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, msg: fmt.Sprintf(format, args...), err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Code() Code { return e.code }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// CodeOf — код первой *Error в цепочке, CodeUnknown для прочих ошибок.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return CodeUnknown
}

// IsPermanent — ошибка не исчезнет при повторе (нет прав, кривые данные,
// неизвестный тип операции).
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	var p interface{ Permanent() bool }
	if errors.As(err, &p) && p.Permanent() {
		return true
	}
	return classifications[CodeOf(err)] == ClassificationPermanent
}

// IsRetryable — всё, что не permanent, считаем временным сбоем.
func IsRetryable(err error) bool {
	return err != nil && !IsPermanent(err)
}
