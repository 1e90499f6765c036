package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfqa/internal/domain"
	"pdfqa/internal/session"
)

type fakeService struct {
	ready    bool
	uploaded []string
	asked    []string
	answer   string
	err      error
	segments []domain.Segment
}

func (f *fakeService) Upload(_ context.Context, path string) (int, error) {
	f.uploaded = append(f.uploaded, path)
	if f.err != nil {
		return 0, f.err
	}
	f.ready = true
	return 3, nil
}

func (f *fakeService) Ask(_ context.Context, sess *session.Session, q string) (string, error) {
	f.asked = append(f.asked, q)
	sess.Append(domain.RoleUser, q)
	if f.err != nil {
		return "", f.err
	}
	sess.Append(domain.RoleAssistant, f.answer)
	return f.answer, nil
}

func (f *fakeService) Sources() ([]domain.Segment, []domain.WebResult) { return f.segments, nil }
func (f *fakeService) Ready() bool                                      { return f.ready }

func newModel(t *testing.T, svc *fakeService, web bool) Model {
	t.Helper()
	sess, err := session.New(domain.ModePDFOnly, web)
	require.NoError(t, err)
	m := New(context.Background(), svc, sess)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func typeLine(m Model, line string) (Model, tea.Cmd) {
	m.input.SetValue(line)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestAsk_Success(t *testing.T) {
	svc := &fakeService{ready: true, answer: "42"}
	m := newModel(t, svc, false)

	m, cmd := typeLine(m, "What is the answer?")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)

	msg := m.askCmd("What is the answer?")()
	next, _ := m.Update(msg)
	m = next.(Model)

	assert.False(t, m.busy)
	assert.Equal(t, []string{"What is the answer?"}, svc.asked)
	require.Len(t, m.entries, 2)
	assert.Equal(t, entryUser, m.entries[0].kind)
	assert.Equal(t, entry{kind: entryAssistant, text: "42"}, m.entries[1])
	assert.Contains(t, m.View(), "42")
}

func TestAsk_ErrorIsShown(t *testing.T) {
	svc := &fakeService{err: domain.E(domain.ErrNoIndex, "answer", nil)}
	m := newModel(t, svc, false)

	next, _ := m.Update(m.askCmd("q")())
	m = next.(Model)
	require.Len(t, m.entries, 1)
	assert.Equal(t, entryError, m.entries[0].kind)
	assert.Equal(t, "Upload a PDF to use PDF-only mode.", m.status)
}

func TestUploadCommand(t *testing.T) {
	svc := &fakeService{}
	m := newModel(t, svc, false)

	m, cmd := typeLine(m, "/upload ./doc.pdf")
	require.NotNil(t, cmd)
	next, _ := m.Update(m.uploadCmd("./doc.pdf")())
	m = next.(Model)

	assert.Equal(t, []string{"./doc.pdf"}, svc.uploaded)
	assert.Contains(t, m.entries[len(m.entries)-1].text, "3 segments")

	svc.err = errors.New("bad file")
	next, _ = m.Update(m.uploadCmd("x.pdf")())
	m = next.(Model)
	assert.Equal(t, entryError, m.entries[len(m.entries)-1].kind)
}

func TestModeToggle(t *testing.T) {
	m := newModel(t, &fakeService{}, true)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Equal(t, domain.ModePDFAndWeb, m.session.Mode())

	m, _ = typeLine(m, "/mode pdf")
	assert.Equal(t, domain.ModePDFOnly, m.session.Mode())
}

func TestModeToggle_WebUnavailable(t *testing.T) {
	m := newModel(t, &fakeService{}, false)
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Equal(t, domain.ModePDFOnly, m.session.Mode())
	assert.Contains(t, m.status, "unavailable")
}

func TestSourcesCommand(t *testing.T) {
	svc := &fakeService{segments: []domain.Segment{{Text: "some text", Page: 4, SourceOffset: 1200}}}
	m := newModel(t, svc, false)
	m, _ = typeLine(m, "/sources")
	require.Len(t, m.entries, 1)
	assert.Contains(t, m.entries[0].text, "page 4, offset 1200: some text")
}

func TestReindexedMsg(t *testing.T) {
	m := newModel(t, &fakeService{}, false)
	next, _ := m.Update(ReindexedMsg{Path: "a.pdf", Segments: 7})
	m = next.(Model)
	assert.Contains(t, m.entries[0].text, "Re-indexed a.pdf")
}
