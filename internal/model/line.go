package model

// Line is one raw transcript line as produced by a connector and consumed by the engine.
type Line struct {
	File   string // transcript the line came from
	Number int    // 1-based line number within File
	Text   string // line text without the trailing newline
}
