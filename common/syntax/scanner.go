package syntax

import "strings"

// balance is the result of scanning a cell for brackets and string literals.
type balance struct {
	// depth is the number of brackets still open at the end of the cell.
	depth int

	// mismatched is set when a closing bracket does not match the innermost open one.
	mismatched bool

	unclosedString bool
}

var closers = map[byte]byte{')': '(', ']': '[', '}': '{'}

// scan walks the code once, skipping comments and string literals, and tracks bracket nesting.
func scan(code string, language string) balance {
	var (
		stack  []byte
		result balance
	)

	hashComments := language == LanguagePython || language == LanguageBash
	slashComments := language == LanguageJavaScript || language == LanguageTypeScript
	backticks := slashComments

	for i := 0; i < len(code); i++ {
		ch := code[i]

		switch {
		case ch == '#' && hashComments && (language == LanguagePython || startsWord(code, i)):
			i = skipLine(code, i)
		case ch == '/' && slashComments && i+1 < len(code) && code[i+1] == '/':
			i = skipLine(code, i)
		case ch == '/' && slashComments && i+1 < len(code) && code[i+1] == '*':
			end := strings.Index(code[i+2:], "*/")
			if end < 0 {
				result.unclosedString = true
				i = len(code)
			} else {
				i += end + 3
			}
		case ch == '"' || ch == '\'' || (ch == '`' && backticks):
			next, closed, broken := skipString(code, i, language)
			if broken {
				result.mismatched = true
				return result
			} else if !closed {
				result.unclosedString = true
				i = len(code)
			} else {
				i = next
			}
		case ch == '(' || ch == '[' || ch == '{':
			stack = append(stack, ch)
		case ch == ')' || ch == ']' || ch == '}':
			if len(stack) == 0 || stack[len(stack)-1] != closers[ch] {
				result.mismatched = true
				return result
			}
			stack = stack[:len(stack)-1]
		}
	}

	result.depth = len(stack)
	return result
}

// skipLine returns the index of the newline ending the line that contains index i.
func skipLine(code string, i int) int {
	if end := strings.IndexByte(code[i:], '\n'); end >= 0 {
		return i + end
	}
	return len(code)
}

// skipString returns the index of the closing quote of the literal opened at index i.
// broken is set for a single-line literal that runs into a newline.
func skipString(code string, i int, language string) (next int, closed bool, broken bool) {
	quote := code[i]

	if language == LanguagePython && strings.HasPrefix(code[i:], strings.Repeat(string(quote), 3)) {
		delimiter := strings.Repeat(string(quote), 3)
		end := strings.Index(code[i+3:], delimiter)
		if end < 0 {
			return len(code), false, false
		}
		return i + 3 + end + 2, true, false
	}

	// Single quotes in bash do not support escapes.
	escapes := !(language == LanguageBash && quote == '\'')
	multiline := quote == '`' || language == LanguageBash

	for j := i + 1; j < len(code); j++ {
		switch code[j] {
		case '\\':
			if escapes {
				j++
			}
		case '\n':
			if !multiline {
				return j, false, true
			}
		case quote:
			return j, true, false
		}
	}

	return len(code), false, false
}

// startsWord reports whether index i is at the start of a shell word.
func startsWord(code string, i int) bool {
	return i == 0 || strings.IndexByte(" \t\n;", code[i-1]) >= 0
}
