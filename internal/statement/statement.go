package statement

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/zombor/statement-ledger/internal/ledger"
)

// Mode records which extraction path produced an entry's raw text
type Mode string

const (
	// ModeText means the PDF text layer was sent to the model
	ModeText Mode = "text"
	// ModeImage means rendered pages (or an uploaded photo) were sent to the model
	ModeImage Mode = "image"
)

// Upload is a statement file as received from the user
type Upload struct {
	Name        string
	Size        int64
	ContentType string
	Data        []byte
}

// Fingerprint identifies an upload by name, size and declared type
func (u Upload) Fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", u.Name, u.Size, u.ContentType)))
	return hex.EncodeToString(sum[:])
}

// Entry is the cached result of processing one upload
type Entry struct {
	Key         string       `json:"key"`
	Filename    string       `json:"filename"`
	RawText     string       `json:"raw_text"`
	Rows        []ledger.Row `json:"rows"`
	DefaultYear int          `json:"default_year"`
	Mode        Mode         `json:"mode"`
	Error       string       `json:"error,omitempty"` // extraction failure, if any
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Result is what the service hands back to callers
type Result struct {
	Entry   *Entry         `json:"entry"`
	Summary ledger.Summary `json:"summary"`
	Cached  bool           `json:"cached"`
	Warning string         `json:"warning,omitempty"`
}
