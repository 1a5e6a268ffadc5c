package prompts

// ============================================================================
// Caption Prompts
// ============================================================================

// CaptionInstruction asks the caption model for setup/punchline pairs.
// The image travels as an inline part next to this text.
const CaptionInstruction = "Analyze the context of this image and provide 5 hilarious, witty, and trendy meme suggestions. " +
	"Each suggestion MUST include a 'top' text (setup) and a 'bottom' text (punchline) appropriate for a standard meme format. " +
	"Return them in a JSON format."

// Field descriptions used in the caption response schema.
const (
	CaptionTopDescription    = "The setup text for the top of the meme."
	CaptionBottomDescription = "The punchline text for the bottom of the meme."
	CaptionListDescription   = "A list of 5 funny meme caption pairs."
)

// ============================================================================
// Edit Prompts
// ============================================================================

// EditPresets are the one-click edit instructions offered by the editor.
var EditPresets = []string{
	"Add a retro 80s neon filter",
	"Make it look like an oil painting",
	"Add a dramatic explosion in the background",
	"Make the image black and white with one red element",
	"Turn the background into a deep space nebula",
}

// Presets returns a copy of EditPresets so callers cannot mutate the shared list.
func Presets() []string {
	out := make([]string, len(EditPresets))
	copy(out, EditPresets)
	return out
}
