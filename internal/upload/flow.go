// Package upload implements the one-shot "upload an image, get an annotated
// image and a PDF report" flow.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
	"yoloview/internal/dto"
	"yoloview/internal/logger"
	"yoloview/internal/model"
	"yoloview/internal/repository"
)

// UserErrorMessage is what the user sees when processing fails, whatever the cause.
const UserErrorMessage = "Error processing image. Please try again."

var (
	// ErrNoFile is returned by Process when nothing has been selected.
	ErrNoFile = errors.New("no file selected")
	// ErrBusy is returned by Process while a previous call is still running.
	ErrBusy = errors.New("upload already in progress")
)

// downloadRoute is where the server proxies backend artifacts.
const downloadRoute = "/api/download/"

// Processor uploads a still image to the inference backend.
type Processor interface {
	ProcessImage(ctx context.Context, filename string, data []byte) (*dto.ProcessedResult, error)
}

// DownloadPath returns the server path that serves an artifact of requestID.
func DownloadPath(requestID, filename string) string {
	return downloadRoute + url.PathEscape(requestID) + "/" + url.PathEscape(filename)
}

// Flow is the upload state of one browser session.
type Flow struct {
	sessionID string
	processor Processor
	ledger    repository.RequestRepository
	janitor   *Janitor
	logger    *logger.Logger

	mu         sync.Mutex
	filename   string
	data       []byte
	generation uint64 // bumped by every Select
	loading    bool
	errMsg     string
	result     *dto.ProcessedResult

	lastSeen time.Time // guarded by Registry.mu
}

// NewFlow creates an empty flow. ledger and janitor may be nil.
func NewFlow(sessionID string, processor Processor, ledger repository.RequestRepository, janitor *Janitor, logger *logger.Logger) *Flow {
	return &Flow{
		sessionID: sessionID,
		processor: processor,
		ledger:    ledger,
		janitor:   janitor,
		logger:    logger,
	}
}

// Select stores a file for processing and drops any previous result or error.
func (f *Flow) Select(filename string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.filename = filename
	f.data = data
	f.generation++
	f.errMsg = ""
	f.supersedeLocked()
}

// Process sends the selected file to the backend. On failure the file is kept
// so the user can try again; on success its bytes are dropped.
func (f *Flow) Process(ctx context.Context) (*dto.ProcessedResult, error) {
	f.mu.Lock()
	if f.data == nil {
		f.mu.Unlock()
		return nil, ErrNoFile
	}
	if f.loading {
		f.mu.Unlock()
		return nil, ErrBusy
	}
	f.loading = true
	f.errMsg = ""
	filename, data, generation := f.filename, f.data, f.generation
	f.mu.Unlock()

	result, err := f.processor.ProcessImage(ctx, filename, data)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false

	if generation != f.generation {
		// A new file was selected meanwhile; this answer belongs to nobody.
		if err == nil {
			f.release(result.RequestID)
		}
		return nil, fmt.Errorf("upload of %s superseded", filename)
	}
	if err != nil {
		f.errMsg = UserErrorMessage
		f.logger.Error("Error processing image %s: %v", filename, err)
		return nil, fmt.Errorf("processing %s: %w", filename, err)
	}

	f.supersedeLocked()
	f.data = nil
	f.result = result
	f.record(filename, result)
	return result, nil
}

// State returns what the upload page shows.
func (f *Flow) State() dto.UploadState {
	f.mu.Lock()
	defer f.mu.Unlock()

	state := dto.UploadState{
		SelectedFile: f.filename,
		Loading:      f.loading,
		Error:        f.errMsg,
	}
	if f.result != nil {
		result := *f.result
		state.Result = &result
		state.ImageURL = DownloadPath(result.RequestID, result.AnnotatedFilename)
		state.ReportURL = DownloadPath(result.RequestID, result.PDFFilename)
	}
	return state
}

// close forgets the selected file and releases the result. It refuses while
// a Process call is running.
func (f *Flow) close() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.loading {
		return false
	}
	f.filename = ""
	f.data = nil
	f.errMsg = ""
	f.supersedeLocked()
	return true
}

// supersedeLocked drops the current result and hands its artifacts to the janitor.
func (f *Flow) supersedeLocked() {
	if f.result == nil {
		return
	}
	f.release(f.result.RequestID)
	f.result = nil
}

func (f *Flow) release(requestID string) {
	if f.janitor != nil {
		f.janitor.Release(requestID)
	}
}

func (f *Flow) record(filename string, result *dto.ProcessedResult) {
	if f.ledger == nil {
		return
	}
	name := result.Filename
	if name == "" {
		name = filename
	}
	_, err := f.ledger.Insert(&model.Request{
		RequestID:         result.RequestID,
		SessionID:         f.sessionID,
		Filename:          name,
		AnnotatedFilename: result.AnnotatedFilename,
		PDFFilename:       result.PDFFilename,
	})
	if err != nil {
		f.logger.Warning("Error recording request %s: %v", result.RequestID, err)
	}
}
