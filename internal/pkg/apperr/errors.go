// Package apperr はドメイン横断のエラー種別を定義する
package apperr

import (
	"errors"
	"fmt"
)

// エラー種別。具体的なエラー型はいずれかにUnwrapされる
var (
	ErrValidation        = errors.New("入力値が不正です")
	ErrSlotUnavailable   = errors.New("指定された枠は予約できません")
	ErrInvalidTransition = errors.New("許可されていない状態遷移です")
	ErrPersistence       = errors.New("永続化に失敗しました")
	ErrPayment           = errors.New("決済に失敗しました")
	ErrNotFound          = errors.New("リソースが見つかりません")
)

// ValidationError は入力値の検証エラー。自動リトライの対象にはならない
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError はValidationErrorを作成する
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IsRetryable は呼び出し側が再試行してよいエラーかを返す
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSlotUnavailable) || errors.Is(err, ErrPersistence)
}
