package reader

// Voice is a synthetic speaking persona offered by the engine.
type Voice struct {
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// Label is the picker text, e.g. "Test Voice (en-US)".
func (v Voice) Label() string {
	if v.Lang == "" {
		return v.Name
	}
	return v.Name + " (" + v.Lang + ")"
}

// Utterance is a single request to speak Text with Voice.
type Utterance struct {
	ID    string
	Text  string
	Voice Voice
}

// Completion receives the outcome of an utterance handed to Engine.Speak.
// Implementations of Engine must call it asynchronously, never from inside Speak.
type Completion interface {
	Complete(id string)
	Fail(id string, err error)
}

// Engine is the speech-synthesis surface the panel consumes.
type Engine interface {
	// Voices returns the currently available voices in engine order.
	Voices() []Voice

	// OnVoicesChanged registers fn to be called whenever the voice list
	// changes. The returned func removes the subscription.
	OnVoicesChanged(fn func()) (unsubscribe func())

	// Speak starts playback of u and reports the outcome to done.
	Speak(u Utterance, done Completion) error

	// Cancel stops any utterance in progress. It is a no-op when idle.
	Cancel()
}
