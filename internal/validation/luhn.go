// Package validation содержит функции валидации и генерации номеров заказов.
package validation

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"unicode"
)

// OrderNumberLength задаёт длину номера заказа вместе с контрольной цифрой.
const OrderNumberLength = 12

// IsValidOrderNumber проверяет корректность номера заказа по алгоритму Луна.
func IsValidOrderNumber(number string) bool {
	if number == "" {
		return false
	}

	sum, ok := luhnSum(number, false)
	if !ok {
		return false
	}

	return sum%10 == 0
}

// CheckDigit вычисляет контрольную цифру Луна для номера без неё.
func CheckDigit(payload string) (byte, error) {
	if payload == "" {
		return 0, fmt.Errorf("empty payload")
	}

	sum, ok := luhnSum(payload, true)
	if !ok {
		return 0, fmt.Errorf("payload %q contains non-digit characters", payload)
	}

	return byte('0' + (10-sum%10)%10), nil
}

// NewOrderNumber генерирует случайный номер заказа с контрольной цифрой.
// Первая цифра никогда не равна нулю.
func NewOrderNumber() (string, error) {
	payload := make([]byte, OrderNumberLength-1)
	for i := range payload {
		limit := int64(10)
		offset := byte('0')
		if i == 0 {
			limit = 9
			offset = '1'
		}
		n, err := rand.Int(rand.Reader, big.NewInt(limit))
		if err != nil {
			return "", fmt.Errorf("generate order number: %w", err)
		}
		payload[i] = offset + byte(n.Int64())
	}

	check, err := CheckDigit(string(payload))
	if err != nil {
		return "", err
	}

	return string(append(payload, check)), nil
}

// luhnSum считает сумму по алгоритму Луна. doubleFirst указывает, удваивать ли
// самую правую цифру (для номера без контрольной цифры).
func luhnSum(number string, doubleFirst bool) (int, bool) {
	sum := 0
	double := doubleFirst

	for i := len(number) - 1; i >= 0; i-- {
		ch := rune(number[i])
		if !unicode.IsDigit(ch) {
			return 0, false
		}
		digit := int(ch - '0')
		if double {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		double = !double
	}

	return sum, true
}
