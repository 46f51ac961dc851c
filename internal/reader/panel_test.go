package reader

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spoken struct {
	Text  string
	Voice string
}

type fakeEngine struct {
	mu        sync.Mutex
	voices    []Voice
	listeners map[int]func()
	nextSub   int
	speaks    []spoken
	lastID    string
	cancels   int
	speakErr  error
}

func newFakeEngine(voices ...Voice) *fakeEngine {
	return &fakeEngine{voices: voices, listeners: map[int]func(){}}
}

func (f *fakeEngine) Voices() []Voice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Voice(nil), f.voices...)
}

func (f *fakeEngine) OnVoicesChanged(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeEngine) Speak(u Utterance, _ Completion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.speakErr != nil {
		return f.speakErr
	}
	f.speaks = append(f.speaks, spoken{Text: u.Text, Voice: u.Voice.Name})
	f.lastID = u.ID
	return nil
}

func (f *fakeEngine) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
}

func (f *fakeEngine) setVoices(voices ...Voice) {
	f.mu.Lock()
	f.voices = voices
	listeners := make([]func(), 0, len(f.listeners))
	for _, fn := range f.listeners {
		listeners = append(listeners, fn)
	}
	f.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

type recorder struct {
	mu    sync.Mutex
	views []View
}

func (r *recorder) PanelChanged(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
}

func (r *recorder) last() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.views[len(r.views)-1]
}

func newTestPanel(t *testing.T, engine *fakeEngine, policy ReselectPolicy) (*Panel, *recorder) {
	t.Helper()
	rec := &recorder{}
	n := 0
	p := New(engine, Options{
		Policy:   policy,
		Observer: rec,
		ID:       "test",
		newID: func() string {
			n++
			return fmt.Sprintf("s%d", n)
		},
		now: func() time.Time { return time.Unix(1700000000, 0) },
	})
	t.Cleanup(p.Close)
	return p, rec
}

var testVoice = Voice{Name: "Test Voice", Lang: "en-US"}

func TestReadAloudScenario(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, _ := newTestPanel(t, engine, ReselectFirst)

	require.NoError(t, p.LoadDocument("hello.txt", strings.NewReader("Hello world")))

	v := p.View()
	assert.Equal(t, "Test Voice", v.SelectedVoice)
	assert.Equal(t, "Test Voice (en-US)", v.Voices[0].Label)
	assert.True(t, v.CanPlay)

	require.True(t, p.Play())
	v = p.View()
	assert.Equal(t, Playing, v.State)
	assert.False(t, v.CanPlay)
	assert.True(t, v.CanStop)
	assert.Equal(t, []spoken{{Text: "Hello world", Voice: "Test Voice"}}, engine.speaks)

	p.Complete(engine.lastID)
	v = p.View()
	assert.Equal(t, Idle, v.State)
	assert.True(t, v.CanPlay)
	assert.Nil(t, v.Session)
	assert.Equal(t, 0, engine.cancels)
}

func TestPlayWithoutDocumentIsIgnored(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, _ := newTestPanel(t, engine, ReselectFirst)
	before := p.View()

	assert.False(t, p.Play())

	after := p.View()
	assert.Equal(t, before, after)
	assert.Empty(t, engine.speaks)
}

func TestPlayWithoutVoiceIsIgnored(t *testing.T) {
	engine := newFakeEngine()
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("text")))

	assert.False(t, p.Play())
	assert.Equal(t, Idle, p.View().State)
	assert.Empty(t, engine.speaks)
}

func TestPlayWhilePlayingIsDropped(t *testing.T) {
	engine := newFakeEngine(testVoice, Voice{Name: "Other", Lang: "es-ES"})
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("first")))
	require.True(t, p.Play())
	session := p.View().Session

	require.NoError(t, p.LoadDocument("b.txt", strings.NewReader("second")))
	p.SelectVoice("Other")
	assert.False(t, p.Play())

	v := p.View()
	assert.Equal(t, Playing, v.State)
	assert.Equal(t, session, v.Session)
	assert.Len(t, engine.speaks, 1)
}

func TestStopWhenIdleStillCancels(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, _ := newTestPanel(t, engine, ReselectFirst)

	p.Stop()

	assert.Equal(t, Idle, p.View().State)
	assert.Equal(t, 1, engine.cancels)
}

func TestStopEndsSessionAndIgnoresLateCompletion(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("text")))
	require.True(t, p.Play())
	first := engine.lastID

	p.Stop()
	assert.Equal(t, Idle, p.View().State)

	require.True(t, p.Play())
	second := engine.lastID
	require.NotEqual(t, first, second)

	p.Complete(first)
	assert.Equal(t, Playing, p.View().State)

	p.Complete(second)
	assert.Equal(t, Idle, p.View().State)
}

func TestFailureResetsToIdleWithBanner(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("text")))
	require.True(t, p.Play())

	p.Fail(engine.lastID, errors.New("voice unsupported"))

	v := p.View()
	assert.Equal(t, Idle, v.State)
	assert.Equal(t, "Playback failed: voice unsupported", v.Error)

	require.True(t, p.Play())
	assert.Empty(t, p.View().Error)
}

func TestSpeakErrorResetsToIdle(t *testing.T) {
	engine := newFakeEngine(testVoice)
	engine.speakErr = errors.New("engine unavailable")
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("text")))

	assert.False(t, p.Play())

	v := p.View()
	assert.Equal(t, Idle, v.State)
	assert.Contains(t, v.Error, "engine unavailable")
}

func TestVoiceChangeReselectsFirst(t *testing.T) {
	engine := newFakeEngine(testVoice, Voice{Name: "Other", Lang: "es-ES"})
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.True(t, p.SelectVoice("Other"))

	engine.setVoices(Voice{Name: "Other", Lang: "es-ES"}, Voice{Name: "Third", Lang: "fr-FR"}, testVoice)
	assert.Equal(t, "Other", p.View().SelectedVoice)

	engine.setVoices(Voice{Name: "Third", Lang: "fr-FR"}, Voice{Name: "Other", Lang: "es-ES"})
	assert.Equal(t, "Third", p.View().SelectedVoice)

	engine.setVoices()
	assert.Empty(t, p.View().SelectedVoice)
}

func TestVoiceChangePreservesSelection(t *testing.T) {
	engine := newFakeEngine(testVoice, Voice{Name: "Other", Lang: "es-ES"})
	p, _ := newTestPanel(t, engine, ReselectPreserve)
	require.True(t, p.SelectVoice("Other"))

	engine.setVoices(Voice{Name: "Third", Lang: "fr-FR"}, Voice{Name: "Other", Lang: "es-ES"})
	assert.Equal(t, "Other", p.View().SelectedVoice)

	engine.setVoices(Voice{Name: "Third", Lang: "fr-FR"})
	assert.Equal(t, "Third", p.View().SelectedVoice)
}

func TestSelectUnknownVoiceClearsSelection(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("text")))

	assert.False(t, p.SelectVoice("Nobody"))
	assert.Empty(t, p.View().SelectedVoice)
	assert.False(t, p.Play())
}

func TestSelectionChangeDoesNotTouchActiveSession(t *testing.T) {
	engine := newFakeEngine(testVoice, Voice{Name: "Other", Lang: "es-ES"})
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("text")))
	require.True(t, p.Play())

	p.SelectVoice("Other")

	v := p.View()
	assert.Equal(t, "Other", v.SelectedVoice)
	assert.Equal(t, "Test Voice", v.Session.Voice.Name)
}

func TestLoadDocumentNilReaderIsNoop(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, rec := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("keep me")))
	notified := len(rec.views)

	require.NoError(t, p.LoadDocument("", nil))

	assert.Equal(t, "keep me", p.View().Document)
	assert.Len(t, rec.views, notified)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk gone")
}

func TestLoadDocumentReadErrorKeepsPreviousDocument(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("keep me")))

	err := p.LoadDocument("b.txt", failingReader{})
	require.Error(t, err)

	v := p.View()
	assert.Equal(t, "keep me", v.Document)
	assert.Equal(t, "Could not read b.txt", v.Error)
}

func TestLoadEmptyDocumentDisablesPlay(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, _ := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("text")))
	require.NoError(t, p.LoadDocument("empty.txt", strings.NewReader("")))

	v := p.View()
	assert.False(t, v.HasDocument)
	assert.False(t, v.CanPlay)
}

func TestObserverSeesIncreasingRevisions(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p, rec := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, p.LoadDocument("a.txt", strings.NewReader("text")))
	p.Play()
	p.Stop()

	for i := 1; i < len(rec.views); i++ {
		assert.Greater(t, rec.views[i].Revision, rec.views[i-1].Revision)
	}
	assert.Equal(t, p.View().Revision, rec.last().Revision)
}

func TestNewPanelStartsNewEpoch(t *testing.T) {
	engine := newFakeEngine(testVoice)
	old, oldRec := newTestPanel(t, engine, ReselectFirst)
	require.NoError(t, old.LoadDocument("a.txt", strings.NewReader("text")))
	old.Play()
	old.Stop()

	fresh, freshRec := newTestPanel(t, engine, ReselectFirst)

	require.NotEmpty(t, old.View().Epoch)
	assert.NotEqual(t, old.View().Epoch, fresh.View().Epoch)
	assert.Less(t, fresh.View().Revision, old.View().Revision)
	for _, v := range oldRec.views {
		assert.Equal(t, old.View().Epoch, v.Epoch)
	}
	assert.Equal(t, fresh.View().Epoch, freshRec.last().Epoch)
}

type reentrantObserver struct {
	panel *Panel
	seen  chan View
}

func (o *reentrantObserver) PanelChanged(View) {
	if o.panel != nil {
		o.seen <- o.panel.View()
	}
}

func TestObserverMayReadPanel(t *testing.T) {
	obs := &reentrantObserver{seen: make(chan View, 16)}
	p := New(newFakeEngine(testVoice), Options{Observer: obs})
	t.Cleanup(p.Close)
	obs.panel = p

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		p.LoadDocument("a.txt", strings.NewReader("text"))
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("observer deadlocked against the panel lock")
	}
	v := <-obs.seen
	assert.Equal(t, "a.txt", v.DocumentName)
}

func TestCloseDropsSubscription(t *testing.T) {
	engine := newFakeEngine(testVoice)
	p := New(engine, Options{})
	require.Len(t, engine.listeners, 1)

	p.Close()

	assert.Empty(t, engine.listeners)
	assert.Equal(t, 1, engine.cancels)
}
