// Package colorize provides syntax highlighting for crustty's step-trace
// display: the current C source line plus the diagnostics line beside it.
package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

func init() {
	// Register our custom trace style on package initialization
	_ = DebugDark
}

// IDA-style theme colors, kept from the disassembly palette this is
// descended from.
const (
	IDAAddress  = "#808080" // Gray for addresses
	IDAMnemonic = "#FFFFFF" // White for keywords
	IDARegister = "#87CEEB" // Light blue for identifiers
	IDANumber   = "#FF80C0" // Light pink for numbers
	IDALabel    = "#FFC800" // Yellow for labels/function names
	IDAComment  = "#FF8000" // Orange for comments
	IDAString   = "#00FF00" // Green for strings
	IDAHexBytes = "#646464" // Dark gray for hex bytes
)

// DebugDark is a custom style for the step-trace display - IDA Pro style
// palette applied to C source instead of disassembly.
var DebugDark = styles.Register(chroma.MustNewStyle("debug-dark", chroma.StyleEntries{
	chroma.Text:           "#FFFFFF",    // White default
	chroma.Background:     "bg:#000000", // Pure black background
	chroma.Comment:        "#FF8000",    // Orange comments
	chroma.CommentPreproc: "#FF8000",    // Same for preprocessor comments

	chroma.Keyword:       "#FFFFFF", // Keywords (if/while/return/...) in white
	chroma.KeywordType:   "#87CEEB", // Type keywords (int/char/void) in cyan
	chroma.Name:          "#87CEEB", // Identifiers in cyan
	chroma.NameBuiltin:   "#87CEEB", // Builtins (malloc, printf) in cyan
	chroma.NameVariable:  "#87CEEB", // Variables in cyan
	chroma.NameFunction:  "#FFC800", // Function names in yellow

	// Numbers - pink like IDA
	chroma.LiteralNumber:        "#FF80C0",
	chroma.LiteralNumberHex:     "#FF80C0",
	chroma.LiteralNumberBin:     "#FF80C0",
	chroma.LiteralNumberOct:     "#FF80C0",
	chroma.LiteralNumberInteger: "#FF80C0",
	chroma.LiteralNumberFloat:   "#FF80C0",

	chroma.NameLabel: "#FFC800",

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#FFFFFF",

	chroma.String: "#00FF00",
}))
