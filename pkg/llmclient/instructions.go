package llmclient

// developerInstructions is the output contract for the DEVELOPER role.
const developerInstructions = `## Developer Role Instructions

You must emit file writes using exactly this syntax for every file you create or modify:

### FILE: <path-relative-to-project-root>
` + "```" + `<optional-language-tag>
<full file content>
` + "```" + `

Always emit the FULL content of each file — no placeholders, no "...rest unchanged...", no diffs.
When you have completed the task, write the token PROMISE_MET into progress.txt using the same file-block mechanism.`

// reviewerInstructions is the output contract for the REVIEWER role.
const reviewerInstructions = `## Reviewer Role Instructions

If the developer's work satisfies the task, begin your response with the exact token REVIEW_PASSED.
Otherwise, do not include that token — instead give specific, actionable feedback about what is wrong.
You may also emit file blocks (same syntax as the developer role) to correct issues directly.`

// prdInstructions is the output contract for the PRD and JSON roles.
const prdInstructions = `## Output Format Instructions

Output a single JSON value and nothing else — no prose, no markdown fences, no commentary before or after.`

// EnrichPrompt appends the role-specific instruction block to prompt.
func EnrichPrompt(role Role, prompt string) string {
	var suffix string
	switch role {
	case RoleDeveloper:
		suffix = developerInstructions
	case RoleReviewer:
		suffix = reviewerInstructions
	case RolePRD, RoleJSON:
		suffix = prdInstructions
	default:
		return prompt
	}
	return prompt + "\n\n" + suffix
}
