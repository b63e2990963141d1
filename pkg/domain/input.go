package domain

// Image is a decoded and re-encoded picture in canonical form.
type Image struct {
	// Data holds the encoded bytes (JPEG, 3 channels).
	Data []byte `json:"data"`

	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`

	// SourceFormat is the format name reported by the decoder (png, gif, webp...).
	SourceFormat string `json:"source_format,omitempty"`
}

// NormalizedInput is the canonical representation of an incoming request.
type NormalizedInput struct {
	Text  string
	Image *Image

	// TextProvided is false when Text was substituted by the default image prompt.
	TextProvided bool
}

// HasImage reports whether an image is attached.
func (in NormalizedInput) HasImage() bool {
	return in.Image != nil
}

// UserMessage converts the input to the user Message of the current turn.
// The image, when present, precedes the text.
func (in NormalizedInput) UserMessage() Message {
	if in.Image != nil {
		return Message{Role: RoleUser, Parts: []Part{ImagePart(in.Image), TextPart(in.Text)}}
	}
	return NewTextMessage(RoleUser, in.Text)
}

// Response is the tagged result of a model call.
type Response struct {
	// HasText is true when the provider returned a text field.
	HasText bool
	Text    string

	// Raw is the provider payload used as a fallback when HasText is false.
	Raw any
}
