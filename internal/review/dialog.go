// Package review runs the review-document download and return workflow.
package review

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/remote"
)

// State is a dialog workflow state.
type State string

const (
	StateIdle         State = "idle"
	StateFileSelected State = "file_selected"
	StateSubmitting   State = "submitting"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
	StateClosed       State = "closed"
)

// User-facing messages.
const (
	MsgMissingInput = "Please provide feedback or upload a document"
	MsgWrongFile    = "Please upload only .docx files"
	MsgReturnFailed = "Failed to return document"
)

// DefaultAutoCloseDelay is how long a successful dialog stays open.
const DefaultAutoCloseDelay = 2 * time.Second

// Submitter sends a return to the platform.
type Submitter interface {
	ReturnReviewDocument(ctx context.Context, req remote.ReturnRequest) (*remote.ReturnResponse, error)
}

// Option configures a Dialog.
type Option func(*Dialog)

// WithAutoCloseDelay sets the delay between success and auto-close.
func WithAutoCloseDelay(d time.Duration) Option {
	return func(dl *Dialog) {
		if d > 0 {
			dl.autoClose = d
		}
	}
}

// WithOnClose registers fn to run after the dialog closes.
func WithOnClose(fn func()) Option {
	return func(dl *Dialog) {
		dl.onClose = fn
	}
}

// Status is a point-in-time view of a dialog.
type Status struct {
	State    State                  `json:"state"`
	Feedback string                 `json:"feedback,omitempty"`
	FileName string                 `json:"file_name,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Result   *remote.ReturnResponse `json:"result,omitempty"`
}

// Dialog is the return workflow for one document. At most one submission
// is in flight at a time.
type Dialog struct {
	ref       remote.DocumentRef
	submitter Submitter
	autoClose time.Duration
	onClose   func()

	mu       sync.Mutex
	state    State
	feedback string
	fileName string
	encoded  string
	hasFile  bool
	errMsg   string
	result   *remote.ReturnResponse
	timer    *time.Timer
	gen      uint64
}

// NewDialog opens a dialog for ref in StateIdle.
func NewDialog(ref remote.DocumentRef, submitter Submitter, opts ...Option) *Dialog {
	d := &Dialog{
		ref:       ref,
		submitter: submitter,
		autoClose: DefaultAutoCloseDelay,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Ref returns the document the dialog acts on.
func (d *Dialog) Ref() remote.DocumentRef { return d.ref }

// Status returns the current dialog state.
func (d *Dialog) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		State:    d.state,
		Feedback: d.feedback,
		FileName: d.fileName,
		Error:    d.errMsg,
		Result:   d.result,
	}
}

// SetFeedback replaces the free-text feedback.
func (d *Dialog) SetFeedback(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editable(); err != nil {
		return err
	}
	d.feedback = text
	return nil
}

// AttachFile validates and encodes a replacement document. On a rejected
// file the dialog state does not change.
func (d *Dialog) AttachFile(name string, data []byte) error {
	if err := checkFileName(name); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editable(); err != nil {
		return err
	}
	d.attach(name, data)
	return nil
}

func checkFileName(name string) error {
	if !strings.EqualFold(filepath.Ext(name), ".docx") {
		return apperr.Validation("file", MsgWrongFile)
	}
	return nil
}

// attach must hold d.mu. An empty document still counts as attached.
func (d *Dialog) attach(name string, data []byte) {
	d.fileName = name
	d.encoded = Encode(data)
	d.hasFile = true
	d.errMsg = ""
	d.state = StateFileSelected
}

// detach must hold d.mu.
func (d *Dialog) detach() {
	d.fileName, d.encoded, d.hasFile = "", "", false
	if d.state == StateFileSelected {
		d.state = StateIdle
	}
}

// RemoveFile drops the attached document.
func (d *Dialog) RemoveFile() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.editable(); err != nil {
		return err
	}
	d.detach()
	return nil
}

// Submit sends the return. It requires feedback or a file and makes no call
// when neither is present. A failed submission may be retried.
func (d *Dialog) Submit(ctx context.Context) (*remote.ReturnResponse, error) {
	d.mu.Lock()
	if err := d.editable(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	return d.submitLocked(ctx)
}

// Input is a complete set of dialog inputs.
type Input struct {
	Feedback string
	FileName string
	File     []byte
	// HasFile attaches File under FileName; otherwise any attached file is
	// removed.
	HasFile bool
}

// SubmitInput replaces the inputs with in and submits them without
// releasing the dialog in between, so concurrent callers never send each
// other's feedback or file. A wrong file name leaves the dialog unchanged.
func (d *Dialog) SubmitInput(ctx context.Context, in Input) (*remote.ReturnResponse, error) {
	if in.HasFile {
		if err := checkFileName(in.FileName); err != nil {
			return nil, err
		}
	}

	d.mu.Lock()
	if err := d.editable(); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	d.feedback = in.Feedback
	if in.HasFile {
		d.attach(in.FileName, in.File)
	} else {
		d.detach()
	}
	return d.submitLocked(ctx)
}

// submitLocked is entered holding d.mu and releases it before the remote call.
func (d *Dialog) submitLocked(ctx context.Context) (*remote.ReturnResponse, error) {
	req := remote.ReturnRequest{
		DocumentRef:  d.ref,
		Feedback:     strings.TrimSpace(d.feedback),
		DocumentText: d.encoded,
	}
	if err := validateReturn(req, d.hasFile); err != nil {
		d.mu.Unlock()
		return nil, err
	}

	d.state = StateSubmitting
	d.errMsg = ""
	gen := d.gen
	d.mu.Unlock()

	resp, err := d.submitter.ReturnReviewDocument(ctx, req)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		// Closed while the call was in flight.
		return resp, err
	}
	if err != nil {
		d.state = StateFailed
		d.errMsg = failureMessage(err)
		return nil, fmt.Errorf("review: return document: %w", err)
	}

	d.state = StateSucceeded
	d.result = resp
	d.timer = time.AfterFunc(d.autoClose, func() { d.closeIfSucceeded(gen) })
	return resp, nil
}

// Close resets the dialog and moves it to StateClosed.
func (d *Dialog) Close() {
	d.mu.Lock()
	d.reset()
	d.mu.Unlock()
	if d.onClose != nil {
		d.onClose()
	}
}

func (d *Dialog) closeIfSucceeded(gen uint64) {
	d.mu.Lock()
	if d.gen != gen || d.state != StateSucceeded {
		d.mu.Unlock()
		return
	}
	d.reset()
	d.mu.Unlock()
	if d.onClose != nil {
		d.onClose()
	}
}

// reset must hold d.mu.
func (d *Dialog) reset() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.state = StateClosed
	d.feedback, d.fileName, d.encoded, d.errMsg = "", "", "", ""
	d.hasFile = false
	d.result = nil
}

// editable must hold d.mu.
func (d *Dialog) editable() error {
	switch d.state {
	case StateSubmitting:
		return apperr.ErrSubmitInFlight
	case StateSucceeded, StateClosed:
		return fmt.Errorf("review: dialog is %s: %w", d.state, apperr.ErrNotReady)
	}
	return nil
}

// ValidateRef checks that ref names a document.
func ValidateRef(ref remote.DocumentRef) error {
	err := validation.ValidateStruct(&ref,
		validation.Field(&ref.ProjectID, validation.Required),
		validation.Field(&ref.DocumentTypeUUID, validation.Required),
	)
	return toValidationError(err)
}

// ValidateReturn checks a return request before it is sent. A request
// carries a document when DocumentText is set.
func ValidateReturn(req remote.ReturnRequest) error {
	return validateReturn(req, req.DocumentText != "")
}

func validateReturn(req remote.ReturnRequest, hasFile bool) error {
	if err := ValidateRef(req.DocumentRef); err != nil {
		return err
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Feedback,
			validation.When(!hasFile, validation.Required.Error(MsgMissingInput)),
		),
	)
	return toValidationError(err)
}

func toValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) && len(errs) > 0 {
		fields := make([]string, 0, len(errs))
		for field := range errs {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		return apperr.Validation(fields[0], errs[fields[0]].Error())
	}
	return apperr.Validation("", err.Error())
}

func failureMessage(err error) string {
	var se *apperr.SubmissionError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return MsgReturnFailed
}
