// Package shortcode генерирует публичные короткие коды ссылок.
package shortcode

import (
	"crypto/rand"
	"math/big"
)

const (
	Length  = 6
	charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var charsetSize = big.NewInt(int64(len(charset)))

// Generate возвращает случайный код длиной Length.
// Источник только crypto/rand: коды публичны и не должны быть предсказуемы.
func Generate() (string, error) {
	result := make([]byte, Length)
	for i := range result {
		num, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", err
		}
		result[i] = charset[num.Int64()]
	}
	return string(result), nil
}

// Valid проверяет, что code мог быть выдан Generate
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
