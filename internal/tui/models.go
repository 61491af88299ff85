package tui

type View int

const (
	ViewHeadlines View = iota
	ViewSaved
	ViewReader
	ViewQuery
	ViewSearch
)
