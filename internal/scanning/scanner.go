package scanning

import (
	"context"
	"errors"
	"time"
)

// ErrNoResponse is returned when a provider answers without any text
var ErrNoResponse = errors.New("no response from extractor")

// Extractor defines the interface for turning statement content into raw
// transaction CSV text
type Extractor interface {
	// ExtractFromText sends the text layer of a statement to the model
	ExtractFromText(ctx context.Context, text string) (string, error)
	// ExtractFromImage sends a single rendered PNG page to the model
	ExtractFromImage(ctx context.Context, png []byte) (string, error)
	// Close closes the extractor and releases resources
	Close() error
}

// withTimeout bounds a single provider call; a zero timeout leaves ctx as is
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
