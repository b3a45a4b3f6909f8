package usecase

import (
	"fmt"

	"github.com/kirillkom/lexrag/internal/core/domain"
)

func buildAnswerPrompt(question string, assembled domain.AssembledContext) string {
	return fmt.Sprintf(`Answer the user question only from the numbered sources below.
Cite every claim with its source number in square brackets, e.g. [1].
Do not cite numbers that are not listed. If the sources are insufficient, say so directly.

Question:
%s

Sources:
%s`, question, assembled.Rendered)
}

func buildNoContextPrompt(question string, hint domain.ContextHint) string {
	scope := ""
	if hint.Jurisdiction != "" {
		scope = fmt.Sprintf(" Assume the %s jurisdiction unless stated otherwise.", hint.Jurisdiction)
	}
	return fmt.Sprintf(`No supporting sources were found for the question below.
Answer from general knowledge, state clearly that no sources back the answer, and keep it brief.%s

Question:
%s`, scope, question)
}
