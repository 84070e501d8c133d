// Package sanitize extracts a runnable Manim script from raw LLM output.
//
// Clean is a fixed sequence of text passes: line-ending normalization,
// dropping conversational preamble before the first "from manim" import,
// removing markdown fences and anything after the closing fence, rewriting
// LaTeX-only constructors to Text, and trimming trailing prose that does not
// look like Python. It is a heuristic, not a parser; every pass is a literal
// string operation so results are predictable and Clean is idempotent.
package sanitize
