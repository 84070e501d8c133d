package pipeline

import "strings"

const (
	fixPreamble    = "The previous Manim code failed to render."
	fixInstruction = "Fix the code and output the complete corrected script only."
)

// BuildFixPrompt embeds the original request, the render error, and the
// failed script into a single regeneration prompt. Empty sections are
// omitted; sections are separated by blank lines.
func BuildFixPrompt(userPrompt, errText, script string) string {
	sections := []string{
		strings.TrimSpace(userPrompt),
		fixPreamble,
	}
	if e := strings.TrimSpace(errText); e != "" {
		sections = append(sections, "Error output:\n"+e)
	}
	if s := strings.TrimSpace(script); s != "" {
		sections = append(sections, "Previous code:\n"+s)
	}
	sections = append(sections, fixInstruction)

	parts := sections[:0]
	for _, s := range sections {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n") + "\n"
}
