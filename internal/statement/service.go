package statement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/statement-ledger/internal/ledger"
	"github.com/zombor/statement-ledger/internal/scanning"
)

// ErrNoDocument is returned when a session has not processed a statement yet
var ErrNoDocument = errors.New("no statement has been processed in this session")

var errStaging = errors.New("staging upload")

const noRowsWarning = "No transactions could be parsed. Review the raw CSV for unusual formats, edit it and parse again."

// TextReader reads the embedded text layer of a PDF
type TextReader interface {
	ReadText(path string) (string, error)
}

// Rasterizer renders every page of a PDF to PNG
type Rasterizer interface {
	RenderPages(path string) ([][]byte, error)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service turns uploaded statements into ledger rows and keeps the latest
// result per session
type Service struct {
	extractor  scanning.Extractor
	cache      Cache
	staging    Staging
	text       TextReader
	pages      Rasterizer
	timeSource TimeSource
}

// NewService creates a new Service reading text layers with scanning.PDFText
// and rendering pages at dpi
func NewService(extractor scanning.Extractor, cache Cache, staging Staging, dpi int) *Service {
	return &Service{
		extractor:  extractor,
		cache:      cache,
		staging:    staging,
		text:       scanning.PDFText{},
		pages:      scanning.NewPageRenderer(dpi),
		timeSource: &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(extractor scanning.Extractor, cache Cache, staging Staging, text TextReader, pages Rasterizer, timeSrc TimeSource) *Service {
	return &Service{
		extractor:  extractor,
		cache:      cache,
		staging:    staging,
		text:       text,
		pages:      pages,
		timeSource: timeSrc,
	}
}

type extraction struct {
	raw        string
	yearSource string
	mode       Mode
}

// Process extracts, sanitizes and parses an upload. Re-submitting the same
// upload in a session returns the cached result. Extraction failures are not
// returned as errors; the result carries a warning and no rows instead.
func (s *Service) Process(ctx context.Context, session string, upload Upload) (*Result, error) {
	key := upload.Fingerprint()

	cached, err := s.cache.Get(session)
	if err != nil {
		slog.Warn("Failed to read session cache", "session", session, "error", err)
	} else if cached != nil && cached.Key == key && cached.Error == "" {
		CacheHitsTotal.Inc()
		return newResult(cached, true), nil
	}

	start := time.Now()
	var ex extraction
	if scanning.IsImageType(upload.ContentType) {
		ex, err = s.extractImage(ctx, upload)
	} else {
		ex, err = s.extractPDF(ctx, upload)
	}
	if !errors.Is(err, errStaging) {
		ExtractionDuration.WithLabelValues(string(ex.mode)).Observe(time.Since(start).Seconds())
	}

	now := s.timeSource.Now()
	entry := &Entry{
		Key:       key,
		Filename:  upload.Name,
		Mode:      ex.mode,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err != nil {
		if errors.Is(err, errStaging) {
			return nil, err
		}
		slog.Error("Failed to extract transactions",
			"filename", upload.Name,
			"content_type", upload.ContentType,
			"file_size", len(upload.Data),
			"mode", ex.mode,
			"error", err,
		)
		DocumentsTotal.WithLabelValues(string(ex.mode), "extraction_failed").Inc()
		entry.Rows = []ledger.Row{}
		entry.DefaultYear = now.Year()
		entry.Error = err.Error()
	} else {
		entry.DefaultYear = ledger.DefaultYear(ex.yearSource, now)
		entry.RawText = ledger.Sanitize(ex.raw)
		entry.Rows = ledger.Parse(entry.RawText, entry.DefaultYear)
		RowsParsed.Observe(float64(len(entry.Rows)))
		DocumentsTotal.WithLabelValues(string(ex.mode), outcome(entry.Rows)).Inc()
		slog.Info("Processed statement",
			"filename", upload.Name,
			"mode", ex.mode,
			"rows", len(entry.Rows),
			"default_year", entry.DefaultYear,
		)
	}

	if err := s.cache.Put(session, entry); err != nil {
		return nil, fmt.Errorf("caching result: %w", err)
	}

	return newResult(entry, false), nil
}

// Reparse replaces the session's raw text with edited text and parses it
// again with the default year found at extraction
func (s *Service) Reparse(session string, text string) (*Result, error) {
	entry, err := s.cache.Get(session)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if entry == nil {
		return nil, ErrNoDocument
	}

	updated := *entry
	updated.RawText = ledger.Sanitize(text)
	updated.Rows = ledger.Parse(updated.RawText, updated.DefaultYear)
	updated.UpdatedAt = s.timeSource.Now()
	RowsParsed.Observe(float64(len(updated.Rows)))

	if err := s.cache.Put(session, &updated); err != nil {
		return nil, fmt.Errorf("caching result: %w", err)
	}

	return newResult(&updated, false), nil
}

// Current returns the session's latest result
func (s *Service) Current(session string) (*Result, error) {
	entry, err := s.cache.Get(session)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if entry == nil {
		return nil, ErrNoDocument
	}
	return newResult(entry, true), nil
}

// extractPDF stages the upload, then uses the text layer when it has one and
// rendered pages when it does not
func (s *Service) extractPDF(ctx context.Context, upload Upload) (extraction, error) {
	path, release, err := s.staging.Stage(upload.Name, upload.Data)
	if err != nil {
		return extraction{mode: ModeText}, fmt.Errorf("%w: %w", errStaging, err)
	}
	defer release()

	text, err := s.text.ReadText(path)
	if err != nil {
		slog.Warn("Text layer unreadable, falling back to page images", "filename", upload.Name, "error", err)
		text = ""
	}

	if strings.TrimSpace(text) != "" {
		raw, err := s.extractor.ExtractFromText(ctx, text)
		if err != nil {
			return extraction{mode: ModeText}, fmt.Errorf("extracting from text: %w", err)
		}
		return extraction{raw: raw, yearSource: text, mode: ModeText}, nil
	}

	pages, err := s.pages.RenderPages(path)
	if err != nil {
		return extraction{mode: ModeImage}, fmt.Errorf("rendering pages: %w", err)
	}
	return s.extractPages(ctx, pages)
}

// extractImage treats a photo upload as a single scanned page
func (s *Service) extractImage(ctx context.Context, upload Upload) (extraction, error) {
	png, err := scanning.PrepareImage(upload.Data, upload.ContentType)
	if err != nil {
		return extraction{mode: ModeImage}, fmt.Errorf("converting image: %w", err)
	}
	return s.extractPages(ctx, [][]byte{png})
}

// extractPages sends pages one at a time and joins the answers in page order
func (s *Service) extractPages(ctx context.Context, pages [][]byte) (extraction, error) {
	responses := make([]string, 0, len(pages))
	for i, page := range pages {
		slog.Info("Extracting page", "page", i+1, "pages", len(pages))
		raw, err := s.extractor.ExtractFromImage(ctx, page)
		if err != nil {
			return extraction{mode: ModeImage}, fmt.Errorf("extracting page %d: %w", i+1, err)
		}
		responses = append(responses, raw)
	}
	joined := strings.Join(responses, "\n")
	return extraction{raw: joined, yearSource: joined, mode: ModeImage}, nil
}

func outcome(rows []ledger.Row) string {
	if len(rows) == 0 {
		return "empty"
	}
	return "parsed"
}

func newResult(entry *Entry, cached bool) *Result {
	result := &Result{
		Entry:   entry,
		Summary: ledger.Summarize(entry.Rows),
		Cached:  cached,
	}
	if len(entry.Rows) == 0 {
		result.Warning = noRowsWarning
		if entry.Error != "" {
			result.Warning = "Extraction failed: " + entry.Error
		}
	}
	return result
}
