package generation

import "strings"

// Styles the transformation backend understands. Unknown styles are coerced
// to StyleClean rather than rejected, matching the product behavior of the
// web client which may ship new style tags ahead of the backend.
const (
	StyleLine   = "line"
	StyleShadow = "shadow"
	StyleClean  = "clean"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"
	MimeWebP = "image/webp"
)

var stylePrompts = map[string]string{
	StyleLine: `
GOAL (LINE MODE / LINE TRACING):
Recreate the tattoo as LINE ART on a white A4 sheet (top-down view).
- Black lines only (no shading/gray/texture/skin).
- Correct perspective and curvature and flatten onto paper.
- Complete missing parts WITHOUT inventing new elements.
- Keep any lettering faithful.
OUTPUT: white A4 sheet, no UI, no extra objects.
`,
	StyleShadow: `
GOAL (SHADOW MODE / LINES + LIGHT SHADING):
Recreate on a white A4 sheet with lines prioritized and light, controlled shading.
- No skin texture, no noise.
- Complete missing parts without inventing.
- Keep any lettering faithful.
OUTPUT: A4 sheet seen from above, very subtle light wood table.
`,
	StyleClean: `
GOAL (CLEAN MODE / TATTOO TO IDENTICAL DRAWING):
Turn the tattoo as applied on skin into a drawing on a white A4 sheet,
keeping the SAME look as the tattoo (lines/shading/highlights/black weight).
- Correct curvature and perspective WITHOUT altering the artwork.
- Complete missing parts by real continuity (do NOT invent).
- Identical lettering if present.
OUTPUT: realistic white A4 sheet seen from above, clean background, no UI or watermark.
`,
}

const outputDirective = "\n\nIMPORTANT: Return ONLY the final image. Do not return text."

// normalizeStyle coerces unknown style tags to the default.
func normalizeStyle(style string) string {
	if _, ok := stylePrompts[style]; ok {
		return style
	}
	return StyleClean
}

// normalizeMime coerces unsupported mime types to JPEG.
func normalizeMime(mime string) string {
	switch mime {
	case MimeJPEG, MimePNG, MimeWebP:
		return mime
	}
	return MimeJPEG
}

// buildPrompt assembles the style prompt with the artist's sanitized note.
func buildPrompt(style, note string) string {
	prompt := stylePrompts[normalizeStyle(style)]
	if note = strings.TrimSpace(note); note != "" {
		prompt += "\n\nARTIST NOTES (use only where they make sense): " + note
	}
	return prompt + outputDirective
}
