package service

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// alnumPrefix returns the first n alphanumeric characters of a fresh UUID, uppercased
func alnumPrefix(n int) string {
	var b strings.Builder
	for b.Len() < n {
		for _, r := range uuid.NewString() {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(unicode.ToUpper(r))
				if b.Len() == n {
					break
				}
			}
		}
	}
	return b.String()
}

// NewOrderID returns a 6 character order code
func NewOrderID() string {
	return alnumPrefix(6)
}

// NewTransactionID returns a TRX- prefixed 10 character payment reference
func NewTransactionID() string {
	return "TRX-" + alnumPrefix(10)
}
