package util

import "strings"

func IsNumber(b byte) bool {
	return b >= '0' && b <= '9'
}

func IsLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func IsUnderScore(b byte) bool {
	return b == '_'
}

func IsLetterOrUnderscore(b byte) bool {
	return IsLetter(b) || IsUnderScore(b)
}

func IsLetterOrUnderscoreOrNumber(b byte) bool {
	return IsLetter(b) || IsUnderScore(b) || IsNumber(b)
}

// Capitalize folds an identifier to the case the symbol table stores it in.
func Capitalize(s string) string {
	return strings.ToUpper(s)
}

// Align rounds size up to the next multiple of boundary.
func Align(size int, boundary int) int {
	return ((size + boundary - 1) / boundary) * boundary
}
