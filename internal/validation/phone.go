// Package validation содержит проверки входных данных.
package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrInvalidPhone возвращается для номера телефона недопустимого формата.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone приводит номер телефона к каноническому виду: отбрасывает
// пробелы, дефисы, скобки и ведущий плюс, оставляя только цифры. Канонический
// номер содержит от 10 до 15 цифр.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+' || r == '.':
			// разделители отбрасываются
		default:
			return "", ErrInvalidPhone
		}
	}

	phone := b.String()
	if len(phone) < 10 || len(phone) > 15 {
		return "", ErrInvalidPhone
	}

	return phone, nil
}
