package domain

const (
	// RefusalMessage is returned verbatim for off-topic queries.
	RefusalMessage = "Please ask only agricultural-related queries 🌾"

	// StepDelimiter separates the steps of a model answer for client renderers.
	StepDelimiter = "|||STEP|||"

	// DefaultImagePrompt replaces missing text when only an image is attached.
	DefaultImagePrompt = "Analyze the attached image from an agricultural point of view and describe what you see, " +
		"including any crop, soil, pest or disease issues and how to address them."

	// GenericFailureMessage is the apology used for unclassified failures.
	GenericFailureMessage = "⚠️ Sorry, I couldn't process your request."

	// DefaultMaxTurns is the number of user/model pairs kept in history.
	DefaultMaxTurns = 8

	// GlobalConversation is the history key shared by all requests in global scope.
	GlobalConversation = "global"
)
