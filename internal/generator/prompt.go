package generator

import "fmt"

const promptTemplate = `You are generating a code artifact from a structured specification.

Specification:
%s

Target branch: %s

Instructions:
1. Implement the specification as %s code
2. Write the resulting file(s) into the current repository checkout
3. Verify the code is syntactically valid before finishing
4. Do not commit or push; the orchestrator handles git operations

If you cannot write files, return the complete code in a single fenced %s code block.
Do not ask for clarification. Make reasonable decisions based on the specification.
`

// BuildPrompt constructs the generation prompt for one attempt.
func BuildPrompt(specText, branch, language string) string {
	return fmt.Sprintf(promptTemplate, specText, branch, language, language)
}
