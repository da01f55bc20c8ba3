// Package lifecycle реализует машину состояний заказа, политику возвратов
// при отмене и расчёт штрафа за невозвращённое оборудование.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/mmeshcher/catering-system/internal/model"
)

var (
	// ErrInvalidStatus возвращается, если запрошенный статус не входит в прямую последовательность.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrIllegalRegression возвращается при попытке перевести заказ назад или в тот же статус.
	ErrIllegalRegression = errors.New("illegal status regression")
	// ErrForbidden возвращается, если у исполнителя нет прав на действие.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyCancelled возвращается для действий над отменённым заказом.
	ErrAlreadyCancelled = errors.New("order already cancelled")
	// ErrAlreadyCompleted возвращается при попытке отменить завершённый заказ.
	ErrAlreadyCompleted = errors.New("order already completed")
	// ErrInconsistentState сигнализирует о несогласованных данных заказа.
	ErrInconsistentState = errors.New("inconsistent order state")
	// ErrNotLoaned возвращается, если по заказу не выдавалось оборудование.
	ErrNotLoaned = errors.New("equipment was not loaned")
)

// IllegalRegressionError содержит текущий и запрошенный статусы.
type IllegalRegressionError struct {
	From model.OrderStatus
	To   model.OrderStatus
}

func (e *IllegalRegressionError) Error() string {
	return fmt.Sprintf("illegal status regression: %s -> %s", e.From, e.To)
}

// Is позволяет сравнивать ошибку с ErrIllegalRegression через errors.Is.
func (e *IllegalRegressionError) Is(target error) bool {
	return target == ErrIllegalRegression
}
