package review

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dagaz/internal/apperr"
	"github.com/starford/dagaz/internal/remote"
)

type fakeSubmitter struct {
	calls atomic.Int32
	block chan struct{}
	err   error

	mu   sync.Mutex
	last remote.ReturnRequest
}

func (f *fakeSubmitter) ReturnReviewDocument(ctx context.Context, req remote.ReturnRequest) (*remote.ReturnResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &remote.ReturnResponse{Message: "Document returned", FeedbackAdded: req.Feedback != ""}, nil
}

var ref = remote.DocumentRef{ProjectID: "p1", DocumentTypeUUID: "d1"}

func TestSubmitWithoutInputMakesNoCall(t *testing.T) {
	sub := &fakeSubmitter{}
	d := NewDialog(ref, sub)
	require.NoError(t, d.SetFeedback("   "))

	_, err := d.Submit(context.Background())

	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, MsgMissingInput, ve.Message)
	assert.Zero(t, sub.calls.Load())
	assert.Equal(t, StateIdle, d.Status().State)
}

func TestSubmitRequiresDocumentRef(t *testing.T) {
	sub := &fakeSubmitter{}
	d := NewDialog(remote.DocumentRef{}, sub)
	require.NoError(t, d.SetFeedback("ok"))

	_, err := d.Submit(context.Background())
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Zero(t, sub.calls.Load())
}

func TestAttachFileRejectsWrongExtension(t *testing.T) {
	d := NewDialog(ref, &fakeSubmitter{})

	err := d.AttachFile("notes.pdf", []byte("x"))
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, MsgWrongFile, ve.Message)
	assert.Equal(t, StateIdle, d.Status().State)

	require.NoError(t, d.AttachFile("Report.DOCX", []byte("x")))
	st := d.Status()
	assert.Equal(t, StateFileSelected, st.State)
	assert.Equal(t, "Report.DOCX", st.FileName)

	require.Error(t, d.AttachFile("other.txt", []byte("y")))
	assert.Equal(t, "Report.DOCX", d.Status().FileName, "rejected file leaves the previous one")

	require.NoError(t, d.RemoveFile())
	assert.Equal(t, StateIdle, d.Status().State)
}

func TestSubmitSendsEncodedFile(t *testing.T) {
	sub := &fakeSubmitter{}
	d := NewDialog(ref, sub)
	payload := []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0xff}
	require.NoError(t, d.AttachFile("r.docx", payload))

	_, err := d.Submit(context.Background())
	require.NoError(t, err)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	decoded, err := Decode(sub.last.DocumentText)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
	assert.Equal(t, "p1", sub.last.ProjectID)
	assert.Empty(t, sub.last.Feedback)
}

func TestEmptyDocumentCountsAsAttached(t *testing.T) {
	sub := &fakeSubmitter{}
	d := NewDialog(ref, sub)
	require.NoError(t, d.AttachFile("blank.docx", nil))

	_, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), sub.calls.Load())

	d2 := NewDialog(ref, sub)
	require.NoError(t, d2.AttachFile("blank.docx", []byte{}))
	require.NoError(t, d2.RemoveFile())
	_, err = d2.Submit(context.Background())
	assert.ErrorIs(t, err, apperr.ErrValidation, "removed file no longer counts")
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestSubmitInputEmptyDocument(t *testing.T) {
	sub := &fakeSubmitter{}
	d := NewDialog(ref, sub)

	_, err := d.SubmitInput(context.Background(), Input{FileName: "blank.docx", HasFile: true})
	require.NoError(t, err)
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestSubmitInputRejectsWrongFile(t *testing.T) {
	sub := &fakeSubmitter{}
	d := NewDialog(ref, sub)
	require.NoError(t, d.SetFeedback("keep me"))

	_, err := d.SubmitInput(context.Background(), Input{Feedback: "other", FileName: "notes.pdf", File: []byte("x"), HasFile: true})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, MsgWrongFile, ve.Message)
	assert.Equal(t, "keep me", d.Status().Feedback)
	assert.Zero(t, sub.calls.Load())
}

func TestSubmitInputCannotReplaceInFlightPayload(t *testing.T) {
	sub := &fakeSubmitter{block: make(chan struct{})}
	d := NewDialog(ref, sub)
	first := []byte("PK\x03\x04first")

	done := make(chan error, 1)
	go func() {
		_, err := d.SubmitInput(context.Background(), Input{Feedback: "from a", FileName: "a.docx", File: first, HasFile: true})
		done <- err
	}()
	require.Eventually(t, func() bool { return d.Status().State == StateSubmitting }, time.Second, time.Millisecond)

	_, err := d.SubmitInput(context.Background(), Input{Feedback: "from b"})
	assert.ErrorIs(t, err, apperr.ErrSubmitInFlight)

	st := d.Status()
	assert.Equal(t, "from a", st.Feedback)
	assert.Equal(t, "a.docx", st.FileName)

	close(sub.block)
	require.NoError(t, <-done)

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Equal(t, "from a", sub.last.Feedback)
	assert.Equal(t, Encode(first), sub.last.DocumentText)
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestBase64RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	inputs := [][]byte{nil, {0}, {0xff, 0xfe}}
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	inputs = append(inputs, all)
	for n := 1; n < 64; n++ {
		b := make([]byte, n*37)
		rng.Read(b)
		inputs = append(inputs, b)
	}

	for _, in := range inputs {
		out, err := Decode(Encode(in))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(in, out), "len=%d", len(in))
	}
}

func TestSingleSubmissionInFlight(t *testing.T) {
	sub := &fakeSubmitter{block: make(chan struct{})}
	d := NewDialog(ref, sub)
	require.NoError(t, d.SetFeedback("please revise"))

	done := make(chan error, 1)
	go func() {
		_, err := d.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return d.Status().State == StateSubmitting }, time.Second, time.Millisecond)

	_, err := d.Submit(context.Background())
	assert.ErrorIs(t, err, apperr.ErrSubmitInFlight)
	assert.ErrorIs(t, d.SetFeedback("edit"), apperr.ErrSubmitInFlight)

	close(sub.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), sub.calls.Load())
}

func TestSuccessAutoCloses(t *testing.T) {
	var closed atomic.Bool
	d := NewDialog(ref, &fakeSubmitter{},
		WithAutoCloseDelay(20*time.Millisecond),
		WithOnClose(func() { closed.Store(true) }),
	)
	require.NoError(t, d.SetFeedback("looks good"))

	resp, err := d.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.FeedbackAdded)
	assert.Equal(t, StateSucceeded, d.Status().State)

	require.Eventually(t, closed.Load, time.Second, 5*time.Millisecond)
	st := d.Status()
	assert.Equal(t, StateClosed, st.State)
	assert.Empty(t, st.Feedback)
}

func TestFailureKeepsInputAndAllowsRetry(t *testing.T) {
	sub := &fakeSubmitter{err: &apperr.SubmissionError{Message: "Project not found", Status: 404}}
	d := NewDialog(ref, sub)
	require.NoError(t, d.SetFeedback("fix section 2"))

	_, err := d.Submit(context.Background())
	assert.ErrorIs(t, err, apperr.ErrSubmission)
	st := d.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "Project not found", st.Error)
	assert.Equal(t, "fix section 2", st.Feedback)

	sub.err = errors.New("connection reset")
	_, err = d.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, MsgReturnFailed, d.Status().Error)

	sub.err = nil
	_, err = d.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, d.Status().State)
	assert.Equal(t, int32(3), sub.calls.Load())
}

func TestCloseDuringSubmitDropsResult(t *testing.T) {
	sub := &fakeSubmitter{block: make(chan struct{})}
	d := NewDialog(ref, sub)
	require.NoError(t, d.SetFeedback("x"))

	done := make(chan struct{})
	go func() {
		d.Submit(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool { return d.Status().State == StateSubmitting }, time.Second, time.Millisecond)

	d.Close()
	close(sub.block)
	<-done
	assert.Equal(t, StateClosed, d.Status().State)
}

func TestDecodeDownload(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	w.Write([]byte("<w:document/>"))
	require.NoError(t, zw.Close())

	dl, err := DecodeDownload(&remote.DocumentFile{DocxBase64: Encode(buf.Bytes())}, "brand_strategy")
	require.NoError(t, err)
	assert.Equal(t, "brand_strategy.docx", dl.Filename)
	assert.Equal(t, buf.Bytes(), dl.Data)
	assert.NotEmpty(t, dl.ContentType)

	dl, err = DecodeDownload(&remote.DocumentFile{Filename: "final.docx", DocxBase64: Encode([]byte("hello"))}, "x")
	require.NoError(t, err)
	assert.Equal(t, "final.docx", dl.Filename)
}

func TestDecodeDownloadRejectsBadPayload(t *testing.T) {
	for _, f := range []*remote.DocumentFile{
		nil,
		{Filename: "a.docx"},
		{Filename: "a.docx", DocxBase64: "%%%not-base64"},
	} {
		dl, err := DecodeDownload(f, "x")
		assert.Nil(t, dl)
		var se *apperr.SubmissionError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, MsgDownloadFailed, se.Message)
	}
}
