package service

import (
	"net"
	"net/url"
	"strings"
	"unicode"
)

const maxURLLength = 2048

// Тексты ошибок валидации (уходят пользователю)
const (
	reasonRequired  = "URL is required"
	reasonTooLong   = "URL must be at most 2048 characters"
	reasonScheme    = "URL must include http:// or https://"
	reasonInvalid   = "Enter a valid URL"
	reasonLocalhost = "Localhost URLs are not allowed"
)

// ValidateURL проверяет URL перед сокращением
func ValidateURL(raw string) error {
	if raw == "" {
		return newValidationError(reasonRequired)
	}
	if len(raw) > maxURLLength {
		return newValidationError(reasonTooLong)
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return newValidationError(reasonScheme)
	}
	if strings.IndexFunc(raw, unicode.IsSpace) >= 0 {
		return newValidationError(reasonInvalid)
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return newValidationError(reasonInvalid)
	}

	host := strings.ToLower(u.Hostname())
	if strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1") {
		return newValidationError(reasonLocalhost)
	}
	if !validHost(host) {
		return newValidationError(reasonInvalid)
	}

	return nil
}

// validHost допускает IP-адрес или доменное имя минимум из двух меток с буквенным TLD
func validHost(host string) bool {
	if net.ParseIP(host) != nil {
		return true
	}

	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	if len(labels) < 2 {
		return false
	}

	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
				return false
			}
		}
	}

	tld := labels[len(labels)-1]
	if len([]rune(tld)) < 2 {
		return false
	}
	return strings.IndexFunc(tld, unicode.IsLetter) >= 0
}
