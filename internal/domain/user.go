package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cwrk-planet/pairchat/pkg/errs"
)

type User struct {
	ID   UserID
	Name string
}

const MaxNameLen = 15

// ValidateName обрезает пробелы и проверяет длину имени: 1..15 символов.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n == 0 || n > MaxNameLen {
		return "", fmt.Errorf("%w: name must be 1-%d characters, got %d", errs.ErrInvalidInput, MaxNameLen, n)
	}
	return name, nil
}
