package execution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/syntax"
)

// Variant describes one language the kernel can be started for.
type Variant struct {
	// Name is the canonical kernel name, which is also the language name.
	Name string

	DisplayName string

	// Version is the language version reported in language_info.
	Version string

	FileExtension  string
	MimeType       string
	PygmentsLexer  string
	CodemirrorMode string

	// Interpreter is the command that runs a file of the variant's language.
	// It may contain arguments, separated by whitespace.
	Interpreter string

	aliases []string
}

var variants = []*Variant{
	{
		Name:           syntax.LanguagePython,
		Version:        "3",
		DisplayName:    "Python 3",
		FileExtension:  ".py",
		MimeType:       "text/x-python",
		PygmentsLexer:  "ipython3",
		CodemirrorMode: "python",
		Interpreter:    "python3",
		aliases:        []string{"python3", "py"},
	},
	{
		Name:           syntax.LanguageBash,
		Version:        "5",
		DisplayName:    "Bash",
		FileExtension:  ".sh",
		MimeType:       "text/x-sh",
		PygmentsLexer:  "bash",
		CodemirrorMode: "shell",
		Interpreter:    "bash",
		aliases:        []string{"sh", "shell"},
	},
	{
		Name:           syntax.LanguageJavaScript,
		Version:        "ES2022",
		DisplayName:    "JavaScript (Node.js)",
		FileExtension:  ".js",
		MimeType:       "text/javascript",
		PygmentsLexer:  "javascript",
		CodemirrorMode: "javascript",
		Interpreter:    "node",
		aliases:        []string{"js", "node", "nodejs"},
	},
	{
		Name:           syntax.LanguageTypeScript,
		Version:        "5",
		DisplayName:    "TypeScript",
		FileExtension:  ".ts",
		MimeType:       "text/typescript",
		PygmentsLexer:  "typescript",
		CodemirrorMode: "typescript",
		Interpreter:    "ts-node",
		aliases:        []string{"ts", "ts-node"},
	},
}

// LookupVariant returns the variant registered under the given kernel name or one of its aliases.
// The returned Variant is a copy and may be modified by the caller.
func LookupVariant(name string) (*Variant, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	for _, variant := range variants {
		if variant.Name == name {
			return variant.clone(), nil
		}

		for _, alias := range variant.aliases {
			if alias == name {
				return variant.clone(), nil
			}
		}
	}

	return nil, fmt.Errorf("%w: \"%s\" (known variants: %s)", ErrUnknownVariant, name, strings.Join(VariantNames(), ", "))
}

// VariantNames returns the canonical names of all variants, sorted.
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for _, variant := range variants {
		names = append(names, variant.Name)
	}
	sort.Strings(names)
	return names
}

// LanguageInfo returns the language_info of a kernel_info_reply for this variant.
func (v *Variant) LanguageInfo() messaging.LanguageInfo {
	return messaging.LanguageInfo{
		Name:           v.Name,
		Version:        v.Version,
		MimeType:       v.MimeType,
		FileExtension:  v.FileExtension,
		PygmentsLexer:  v.PygmentsLexer,
		CodemirrorMode: v.CodemirrorMode,
	}
}

func (v *Variant) String() string {
	return fmt.Sprintf("Variant[%s, interpreter=%s]", v.Name, v.Interpreter)
}

func (v *Variant) clone() *Variant {
	clone := *v
	clone.aliases = append([]string(nil), v.aliases...)
	return &clone
}
