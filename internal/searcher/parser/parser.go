package parser

import (
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/internal/indexer/normalizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Game-Catalog-Search/pkg/errors"
)

// Query is a validated search request.
type Query struct {
	RawText         string
	NormalizedText  string
	NormalizedWords []string
	Limit           int
	// QuotedPhrase holds the text between the quotes when the whole query
	// was wrapped in double quotes. It switches off word tokenization.
	QuotedPhrase string
}

// Quoted reports whether the query is a quoted phrase.
func (q *Query) Quoted() bool {
	return q.QuotedPhrase != ""
}

// InvalidLimitError is returned for a non-positive limit.
type InvalidLimitError struct {
	Limit int
}

func (e *InvalidLimitError) Error() string {
	return fmt.Sprintf("limit must be a positive integer, got %d", e.Limit)
}

func (e *InvalidLimitError) Unwrap() error {
	return apperrors.ErrInvalidLimit
}

// Parse validates limit and normalizes raw with n (the default normalizer
// when nil). Empty text is not an error; it yields a query that matches
// nothing.
func Parse(raw string, limit int, n *normalizer.Normalizer) (*Query, error) {
	if limit <= 0 {
		return nil, &InvalidLimitError{Limit: limit}
	}
	if n == nil {
		n = normalizer.Default()
	}
	q := &Query{
		RawText: raw,
		Limit:   limit,
	}
	text := raw
	if phrase, ok := unquote(raw); ok {
		q.QuotedPhrase = phrase
		text = phrase
	}
	q.NormalizedText, q.NormalizedWords = n.Normalize(text)
	return q, nil
}

func unquote(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}} {
		if len(s) > len(pair[0])+len(pair[1]) &&
			strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			inner := s[len(pair[0]) : len(s)-len(pair[1])]
			if strings.TrimSpace(inner) == "" || hasBareQuote(inner) {
				return "", false
			}
			return inner, true
		}
	}
	return "", false
}

// hasBareQuote reports a quote mark not preceded by a backslash, which means
// the outer quotes belong to separate phrases.
func hasBareQuote(s string) bool {
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"' || r == '“' || r == '”':
			return true
		}
	}
	return false
}
