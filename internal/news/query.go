package news

import (
	"strconv"
)

const (
	DefaultCountry  = "us"
	DefaultLanguage = "en"
	DefaultPage     = 1
	DefaultPageSize = 20

	MaxPage     = 100
	MaxPageSize = 100
	MaxQueryLen = 100
)

type defaultedFields uint8

const (
	defaultedCountry defaultedFields = 1 << iota
	defaultedLanguage
)

// NewsQuery is the normalized request every adapter receives. It is a value
// type: derive a new query instead of mutating a shared one.
type NewsQuery struct {
	Q        string
	Category Category
	Country  string
	Language string
	Page     int
	PageSize int

	defaulted defaultedFields
}

// WithDefaults fills every unset field with its default and records which
// of country/language were filled in rather than supplied.
func (q NewsQuery) WithDefaults() NewsQuery {
	if q.Country == "" {
		q.Country = DefaultCountry
		q.defaulted |= defaultedCountry
	}
	if q.Language == "" {
		q.Language = DefaultLanguage
		q.defaulted |= defaultedLanguage
	}
	if q.Page <= 0 {
		q.Page = DefaultPage
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	return q
}

// CountryExplicit reports whether the caller chose the country.
func (q NewsQuery) CountryExplicit() bool {
	return q.Country != "" && q.defaulted&defaultedCountry == 0
}

// LanguageExplicit reports whether the caller chose the language.
func (q NewsQuery) LanguageExplicit() bool {
	return q.Language != "" && q.defaulted&defaultedLanguage == 0
}

// Params is the canonical parameter map used to key cached results.
func (q NewsQuery) Params() map[string]string {
	return map[string]string{
		"q":        q.Q,
		"category": string(q.Category),
		"country":  q.Country,
		"language": q.Language,
		"page":     strconv.Itoa(q.Page),
		"pageSize": strconv.Itoa(q.PageSize),
	}
}
