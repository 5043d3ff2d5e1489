//go:build cgo

package syntax_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/syntax"
)

// Cells whose brackets and strings balance, so only the grammar parse can tell they are broken.
var _ = Describe("CompletenessChecker grammar", func() {
	It("Will reject a Python statement with an error before the end of the cell", func() {
		checker := syntax.NewCompletenessChecker(syntax.LanguagePython)

		Expect(checker.Check("x = = 1").Status).To(Equal(messaging.IsCompleteStatusInvalid))
		Expect(checker.Check("x = = 1\ny = 2\n").Status).To(Equal(messaging.IsCompleteStatusInvalid))
	})

	It("Will accept the same statements once they are well formed", func() {
		checker := syntax.NewCompletenessChecker(syntax.LanguagePython)

		Expect(checker.Check("x = 1").Status).To(Equal(messaging.IsCompleteStatusComplete))
		Expect(checker.Check("x = 1\ny = 2\n").Status).To(Equal(messaging.IsCompleteStatusComplete))
	})
})
