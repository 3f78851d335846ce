package validator

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Number of whitespace separated words, 0 for blank text
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func validateMaxWords(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}

	return WordCount(fl.Field().String()) <= limit
}
