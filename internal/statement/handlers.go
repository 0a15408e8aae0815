package statement

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/statement-ledger/internal/ledger"
)

const (
	csvFilename  = "qbo_upload.csv"
	xlsxFilename = "qbo_upload.xlsx"
	xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes {"error": message} with the given status
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleIndex serves the HTML interface
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleStaticJS serves the JavaScript file
func (s *Server) handleStaticJS(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(appJS)
}

// handleUpload accepts a statement and returns its parsed rows
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Maximum size is 50MB.", http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		msg := "No file provided"
		if errors.Is(err, http.ErrMissingFile) {
			msg = "No file was selected. Please choose a statement to upload."
		}
		jsonError(w, msg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	upload := Upload{
		Name:        header.Filename,
		Size:        header.Size,
		ContentType: ContentTypeFor(header.Filename, header.Header.Get("Content-Type"), data),
		Data:        data,
	}

	result, err := s.service.Process(r.Context(), session(w, r), upload)
	if err != nil {
		slog.Error("Error processing statement", "filename", header.Filename, "error", err)
		jsonError(w, "Error processing statement. Please try again.", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	writeJSON(w, http.StatusOK, result)
}

// handleCurrent returns the session's latest result
func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	result, ok := s.current(w, r)
	if !ok {
		return
	}
	setCORSHeaders(w)
	writeJSON(w, http.StatusOK, result)
}

// handleReparse re-parses edited raw CSV text
func (s *Server) handleReparse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RawText *string `json:"raw_text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RawText == nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.service.Reparse(session(w, r), *req.RawText)
	if errors.Is(err, ErrNoDocument) {
		jsonError(w, "Upload a statement first", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("Error re-parsing statement", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	writeJSON(w, http.StatusOK, result)
}

// handleDownloadCSV returns the session's valid rows as CSV
func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, csvFilename, "text/csv; charset=utf-8", ledger.WriteCSV)
}

// handleDownloadXLSX returns the session's valid rows as a spreadsheet
func (s *Server) handleDownloadXLSX(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, xlsxFilename, xlsxMimeType, ledger.WriteXLSX)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, filename, contentType string, write func(io.Writer, []ledger.Row) error) {
	result, ok := s.current(w, r)
	if !ok {
		return
	}

	// Render fully before writing headers so failures can still become a 500
	var buf bytes.Buffer
	if err := write(&buf, result.Entry.Rows); err != nil {
		slog.Error("Error writing export", "filename", filename, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write(buf.Bytes())
}

func (s *Server) current(w http.ResponseWriter, r *http.Request) (*Result, bool) {
	result, err := s.service.Current(session(w, r))
	if errors.Is(err, ErrNoDocument) {
		jsonError(w, "Upload a statement first", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		slog.Error("Error reading session", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return result, true
}

// ContentTypeFor picks an upload's content type from the declared type, then
// the file extension, then the content itself
func ContentTypeFor(filename, declared string, data []byte) string {
	contentType := strings.ToLower(strings.TrimSpace(declared))
	if contentType != "" && contentType != "application/octet-stream" {
		return contentType
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}

	return http.DetectContentType(data)
}
