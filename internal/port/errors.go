package port

import "errors"

// Sentinel errors used across ports. Callers classify failures with errors.Is;
// adapters wrap these with context via fmt.Errorf("%w: ...").
var (
	// ErrStoryNotFound means the story does not exist in the vector store.
	ErrStoryNotFound = errors.New("story not found")

	// ErrTestCasesNotFound means no generated run exists for a story.
	ErrTestCasesNotFound = errors.New("test cases not found")

	// ErrMissingVector means the story exists but carries no usable embedding.
	ErrMissingVector = errors.New("story has no embedding")

	// ErrMalformedOutput means the model response could not be parsed as JSON.
	ErrMalformedOutput = errors.New("model output is not valid JSON")

	// ErrInvalidShape means the model response parsed but failed shape validation.
	ErrInvalidShape = errors.New("model output failed shape validation")

	// ErrModel means the model call itself failed (transport or API error).
	ErrModel = errors.New("model call failed")

	// ErrDatabase means a persistence operation failed.
	ErrDatabase = errors.New("database operation failed")

	// ErrConfiguration means a required identifier or setting is missing.
	ErrConfiguration = errors.New("missing required configuration")
)

// ErrorType maps an error onto the stable discriminant exposed to API callers.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, ErrStoryNotFound):
		return "StoryNotFoundError"
	case errors.Is(err, ErrTestCasesNotFound):
		return "TestCasesNotFoundError"
	case errors.Is(err, ErrMissingVector):
		return "MissingVectorError"
	case errors.Is(err, ErrMalformedOutput), errors.Is(err, ErrInvalidShape), errors.Is(err, ErrModel):
		return "LLMError"
	case errors.Is(err, ErrDatabase):
		return "DatabaseError"
	case errors.Is(err, ErrConfiguration):
		return "ConfigurationError"
	default:
		return "UnexpectedError"
	}
}
