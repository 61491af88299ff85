package tui

import (
	"fmt"
	"strings"
)

// StatusKind indicates severity for status messages.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusWarn
	StatusError
)

// Canonical short status messages used across the app.
const (
	MsgFetching     = "Fetching headlines…"
	MsgSaved        = "Saved to your library"
	MsgRemoved      = "Removed from your library"
	MsgMarkedRead   = "Marked as read"
	MsgNoResults    = "No results"
	MsgNoHeadlines  = "No headlines for this query"
	MsgFirstPage    = "Already on the first page"
	MsgRenderFailed = "Could not render article"
)

func MsgBookmarked(on bool) string {
	if on {
		return "Bookmarked"
	}
	return "Bookmark removed"
}

func MsgRated(rating int) string {
	return "Rated " + ratingStars(rating)
}

func MsgOpened(url string) string {
	return "Opened " + truncateMiddle(url, 60)
}

func MsgResultsCount(n int) string {
	if n == 1 {
		return "1 result"
	}
	return fmt.Sprintf("%d results", n)
}

// MsgHeadlinesSummary describes a finished fetch: what is shown, what the
// providers reported in total, and how many providers failed.
func MsgHeadlinesSummary(shown, total int, providers []string, failures int) string {
	base := fmt.Sprintf("%d of %d headlines", shown, total)
	if len(providers) > 0 {
		base += " • " + strings.Join(providers, ", ")
	}
	if failures > 0 {
		base += fmt.Sprintf(" • %d providers failed", failures)
	}
	return base
}

func ratingStars(rating int) string {
	if rating <= 0 {
		return ""
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}
