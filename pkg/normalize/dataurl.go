package normalize

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aretw0/agrobot/pkg/domain"
)

// DecodeDataURL extracts the bytes from "data:<mime>;base64,<payload>" or
// from a bare base64 payload. An empty string yields nil without error.
func DecodeDataURL(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	payload := s
	if strings.HasPrefix(s, "data:") {
		header, rest, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("%w: malformed data URL", domain.ErrDecodeFailed)
		}
		if !strings.HasSuffix(header, ";base64") {
			return nil, fmt.Errorf("%w: data URL is not base64 encoded", domain.ErrDecodeFailed)
		}
		payload = rest
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		// Some clients strip the padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}
	return data, nil
}
