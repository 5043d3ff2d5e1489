//go:build cgo

package syntax

import (
	"strings"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// grammar parses cells with a tree-sitter grammar.
type grammar struct {
	language *tree_sitter.Language
}

func grammarFor(language string) *grammar {
	var ptr unsafe.Pointer
	switch language {
	case LanguagePython:
		ptr = tree_sitter_python.Language()
	case LanguageBash:
		ptr = tree_sitter_bash.Language()
	case LanguageJavaScript, LanguageTypeScript:
		// The TypeScript grammar also accepts plain JavaScript.
		ptr = tree_sitter_typescript.LanguageTypescript()
	default:
		return nil
	}

	return &grammar{language: tree_sitter.NewLanguage(ptr)}
}

// parse reports whether the cell parses cleanly and, if not, whether every error sits at the end of the input.
func (g *grammar) parse(code string) parseOutcome {
	if g == nil {
		return parseUnavailable
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(g.language); err != nil {
		return parseUnavailable
	}

	source := []byte(code)
	tree := parser.Parse(source, nil)
	if tree == nil {
		return parseUnavailable
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		return parseUnavailable
	}

	if !root.HasError() {
		return parseClean
	}

	end := uint(len(strings.TrimRight(code, " \t\r\n")))
	outcome := parseErrorAtEnd

	var traverse func(*tree_sitter.Node)
	traverse = func(n *tree_sitter.Node) {
		if n == nil || outcome == parseErrorInside {
			return
		}

		if n.IsMissing() || n.IsError() {
			// A missing token or an error region that runs to the end of the input could still be completed.
			if n.EndByte() < end {
				outcome = parseErrorInside
				return
			}
		}

		childCount := n.ChildCount()
		for i := uint(0); i < childCount; i++ {
			traverse(n.Child(i))
		}
	}
	traverse(root)

	return outcome
}
