package syntax

import (
	"strings"

	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
)

const (
	LanguagePython     = "python"
	LanguageBash       = "bash"
	LanguageJavaScript = "javascript"
	LanguageTypeScript = "typescript"

	indentUnit = "    "
)

// parseOutcome is what the grammar-level parse of a cell reports.
type parseOutcome int

const (
	parseUnavailable parseOutcome = iota
	parseClean
	parseErrorAtEnd
	parseErrorInside
)

// CompletenessChecker decides whether a cell of code can be executed as is.
// Bracket and string balance is checked first; the grammar parse then separates code that
// is merely unfinished from code that can never become valid.
type CompletenessChecker struct {
	language string
	grammar  *grammar
}

// NewCompletenessChecker creates a checker for the given language.
// Languages without a grammar are still checked for bracket and string balance.
func NewCompletenessChecker(language string) *CompletenessChecker {
	language = strings.ToLower(strings.TrimSpace(language))
	return &CompletenessChecker{
		language: language,
		grammar:  grammarFor(language),
	}
}

func (c *CompletenessChecker) Language() string {
	return c.language
}

// Check classifies code as complete, incomplete, invalid, or unknown.
func (c *CompletenessChecker) Check(code string) *messaging.IsCompleteReply {
	if strings.TrimSpace(code) == "" {
		return &messaging.IsCompleteReply{Status: messaging.IsCompleteStatusComplete}
	}

	if !c.known() {
		return &messaging.IsCompleteReply{Status: messaging.IsCompleteStatusUnknown}
	}

	balance := scan(code, c.language)
	if balance.mismatched {
		return &messaging.IsCompleteReply{Status: messaging.IsCompleteStatusInvalid}
	}

	if balance.unclosedString || balance.depth > 0 || endsWithContinuation(code) {
		return c.incomplete(code)
	}

	if c.language == LanguagePython && opensPythonBlock(code) {
		return c.incomplete(code)
	}

	switch c.grammar.parse(code) {
	case parseErrorAtEnd:
		return c.incomplete(code)
	case parseErrorInside:
		return &messaging.IsCompleteReply{Status: messaging.IsCompleteStatusInvalid}
	default:
		return &messaging.IsCompleteReply{Status: messaging.IsCompleteStatusComplete}
	}
}

func (c *CompletenessChecker) known() bool {
	switch c.language {
	case LanguagePython, LanguageBash, LanguageJavaScript, LanguageTypeScript:
		return true
	default:
		return false
	}
}

func (c *CompletenessChecker) incomplete(code string) *messaging.IsCompleteReply {
	lastLine := lastNonEmptyLine(code)
	indent := lastLine[:len(lastLine)-len(strings.TrimLeft(lastLine, " \t"))]

	if c.language == LanguagePython {
		lastLine = stripPythonComment(lastLine)
	}

	trimmed := strings.TrimRight(lastLine, " \t")
	if strings.HasSuffix(trimmed, ":") || strings.HasSuffix(trimmed, "{") || strings.HasSuffix(trimmed, "(") ||
		strings.HasSuffix(trimmed, "[") || strings.HasSuffix(trimmed, " do") || strings.HasSuffix(trimmed, " then") {
		indent += indentUnit
	}

	return &messaging.IsCompleteReply{Status: messaging.IsCompleteStatusIncomplete, Indent: indent}
}

func lastNonEmptyLine(code string) string {
	lines := strings.Split(code, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

func endsWithContinuation(code string) bool {
	return strings.HasSuffix(strings.TrimRight(code, " \t\n"), "\\")
}

// opensPythonBlock reports whether the cell ends inside an indented block that has not been closed by a blank line.
func opensPythonBlock(code string) bool {
	lastLine := lastNonEmptyLine(code)
	if strings.HasSuffix(strings.TrimRight(stripPythonComment(lastLine), " \t"), ":") {
		return true
	}

	lines := strings.Split(code, "\n")
	if len(lines) < 2 {
		return false
	}

	// A multi-line block is finished by a trailing blank line.
	endsWithBlank := strings.TrimSpace(lines[len(lines)-1]) == ""
	indented := len(lastLine) > 0 && (lastLine[0] == ' ' || lastLine[0] == '\t')
	return indented && !endsWithBlank
}

// stripPythonComment removes a trailing "#" comment from a line. A "#" inside a string literal is kept.
func stripPythonComment(line string) string {
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '#':
			return line[:i]
		case '"', '\'':
			next, closed, _ := skipString(line, i, LanguagePython)
			if !closed {
				return line
			}
			i = next
		}
	}
	return line
}
