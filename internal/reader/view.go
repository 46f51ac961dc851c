package reader

// VoiceOption is one entry in the voice picker.
type VoiceOption struct {
	Name     string `json:"name"`
	Lang     string `json:"lang"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// View is everything the presentation layer needs. It holds no state of its
// own; Panel.View derives it from the document, the registry and the controller.
// Revisions count up within one Epoch; a new Epoch means a new panel.
type View struct {
	Epoch         string        `json:"epoch"`
	Revision      uint64        `json:"revision"`
	DocumentName  string        `json:"document_name,omitempty"`
	Document      string        `json:"document"`
	HasDocument   bool          `json:"has_document"`
	Voices        []VoiceOption `json:"voices"`
	SelectedVoice string        `json:"selected_voice,omitempty"`
	State         State         `json:"state"`
	Session       *Session      `json:"session,omitempty"`
	CanUpload     bool          `json:"can_upload"`
	CanPlay       bool          `json:"can_play"`
	CanStop       bool          `json:"can_stop"`
	Error         string        `json:"error,omitempty"`
}

func deriveView(epoch string, rev uint64, doc Document, voices *Registry, playback *Controller, banner string) View {
	selected, hasSelected := voices.Selected()

	list := voices.List()
	options := make([]VoiceOption, 0, len(list))
	for _, v := range list {
		options = append(options, VoiceOption{
			Name:     v.Name,
			Lang:     v.Lang,
			Label:    v.Label(),
			Selected: hasSelected && v.Name == selected.Name,
		})
	}

	state := playback.State()
	v := View{
		Epoch:        epoch,
		Revision:     rev,
		DocumentName: doc.Name,
		Document:     doc.Text,
		HasDocument:  doc.Present(),
		Voices:       options,
		State:        state,
		CanUpload:    true,
		CanPlay:      doc.Present() && state == Idle,
		CanStop:      state == Playing,
		Error:        banner,
	}
	if hasSelected {
		v.SelectedVoice = selected.Name
	}
	if s, ok := playback.Active(); ok {
		v.Session = &s
	}
	return v
}
