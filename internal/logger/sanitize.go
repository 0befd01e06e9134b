package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Length caps applied before strings reach a log line or an error body.
const (
	MaxPathLength          = 500
	MaxTextLength          = 200 // item names, OCR text, reminder bodies
	MaxErrorMessageLength  = 1000
	MaxGeneralStringLength = 2000
	MaxDebugContentLength  = 10000 // completion prompts and replies in debug mode
)

// SanitizeString drops invalid UTF-8 and non-printable runes other than
// whitespace, then cuts s to at most maxLength bytes on a rune boundary,
// marking the cut with "...". A maxLength of zero or less means
// MaxGeneralStringLength.
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	s = strings.Map(keepPrintable, strings.ToValidUTF8(s, ""))
	if len(s) <= maxLength {
		return s
	}
	cut := maxLength
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func keepPrintable(r rune) rune {
	switch {
	case unicode.IsPrint(r):
		return r
	case r == ' ', r == '\t', r == '\n', r == '\r':
		return r
	default:
		return -1
	}
}

// SanitizePath is SanitizeString capped for URL paths
func SanitizePath(path string) string { return SanitizeString(path, MaxPathLength) }

// SanitizeText is SanitizeString capped for user-entered text
func SanitizeText(s string) string { return SanitizeString(s, MaxTextLength) }

// SanitizeDebugContent is SanitizeString capped for completion traffic
func SanitizeDebugContent(content string) string {
	return SanitizeString(content, MaxDebugContentLength)
}

// SanitizeError returns the sanitized message of err, or "" for nil
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// Text is a zap field carrying sanitized user-entered text
func Text(key, s string) zap.Field {
	return zap.String(key, SanitizeText(s))
}

// Error is a zap "error" field carrying the sanitized message of err
func Error(err error) zap.Field {
	return zap.String("error", SanitizeError(err))
}
