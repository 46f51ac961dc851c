package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/tahcohcat/lector-web/internal/host"
	"github.com/tahcohcat/lector-web/internal/logger"
	"github.com/tahcohcat/lector-web/internal/metrics"
	"github.com/tahcohcat/lector-web/internal/reader"
	"github.com/tahcohcat/lector-web/internal/speech"
)

// multipartOverhead is the slack allowed on top of the document itself for
// the multipart envelope.
const multipartOverhead = 64 << 10

// PanelIdentity resolves the panel that belongs to a request.
type PanelIdentity interface {
	PanelID(w http.ResponseWriter, r *http.Request) (string, error)
}

// RoomServer attaches a websocket connection to a panel's room.
type RoomServer interface {
	ServeWS(room string, w http.ResponseWriter, r *http.Request)
}

type ReaderHandler struct {
	panels   *Panels
	identity PanelIdentity
	renderer Renderer
	clips    *host.ClipStore
	catalog  *speech.Catalog
	rooms    RoomServer
	maxBytes int64
	metrics  *metrics.Metrics // optional
	logger   *logger.Log
}

type HandlerDeps struct {
	Panels   *Panels
	Identity PanelIdentity
	Renderer Renderer
	Clips    *host.ClipStore
	Catalog  *speech.Catalog
	Rooms    RoomServer
	MaxBytes int64
	Metrics  *metrics.Metrics
}

func NewReaderHandler(deps HandlerDeps) *ReaderHandler {
	return &ReaderHandler{
		panels:   deps.Panels,
		identity: deps.Identity,
		renderer: deps.Renderer,
		clips:    deps.Clips,
		catalog:  deps.Catalog,
		rooms:    deps.Rooms,
		maxBytes: deps.MaxBytes,
		metrics:  deps.Metrics,
		logger:   logger.New().WithField("component", "api"),
	}
}

func (rh *ReaderHandler) panel(w http.ResponseWriter, r *http.Request) (*reader.Panel, bool) {
	id, err := rh.identity.PanelID(w, r)
	if err != nil {
		rh.logger.WithError(err).Error("failed to resolve panel")
		http.Error(w, "Session error", http.StatusInternalServerError)
		return nil, false
	}
	return rh.panels.Get(id), true
}

// GET / - Render the reader page
func (rh *ReaderHandler) Index(w http.ResponseWriter, r *http.Request) {
	p, ok := rh.panel(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := rh.renderer.Page(w, p.View()); err != nil {
		rh.logger.WithError(err).Error("failed to render page")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// GET /api/v1/state - Current panel view
func (rh *ReaderHandler) GetState(w http.ResponseWriter, r *http.Request) {
	p, ok := rh.panel(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

// POST /api/v1/document - Load a text file (multipart field "file")
func (rh *ReaderHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := rh.panel(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rh.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(rh.maxBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			// nothing was picked
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("Document exceeds %d bytes", rh.maxBytes), http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		// the picker was dismissed
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > rh.maxBytes {
		http.Error(w, fmt.Sprintf("Document exceeds %d bytes", rh.maxBytes), http.StatusRequestEntityTooLarge)
		return
	}

	if err := p.LoadDocument(header.Filename, file); err != nil {
		// the panel shows the banner; the response carries it too
		writeJSON(w, http.StatusUnprocessableEntity, p.View())
		return
	}

	if rh.metrics != nil {
		rh.metrics.DocumentsLoaded.Inc()
	}
	writeJSON(w, http.StatusOK, p.View())
}

// GET /api/v1/voices - Voices the panel offers; ?q= adds the closest match
func (rh *ReaderHandler) ListVoices(w http.ResponseWriter, r *http.Request) {
	p, ok := rh.panel(w, r)
	if !ok {
		return
	}

	v := p.View()
	resp := map[string]interface{}{
		"voices":   v.Voices,
		"selected": v.SelectedVoice,
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		resp["suggestion"] = rh.catalog.Suggest(q)
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/v1/voice - Select a voice by name; unknown names clear the selection
func (rh *ReaderHandler) SelectVoice(w http.ResponseWriter, r *http.Request) {
	p, ok := rh.panel(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	} else {
		req.Name = r.FormValue("name")
	}

	p.SelectVoice(req.Name)
	writeJSON(w, http.StatusOK, p.View())
}

type playResponse struct {
	Accepted bool        `json:"accepted"`
	View     reader.View `json:"view"`
}

// POST /api/v1/play - Start reading; ignored unless idle with a document and voice
func (rh *ReaderHandler) Play(w http.ResponseWriter, r *http.Request) {
	p, ok := rh.panel(w, r)
	if !ok {
		return
	}

	accepted := p.Play()
	if rh.metrics != nil {
		if accepted {
			rh.metrics.SessionEvent("started")
		} else {
			rh.metrics.SessionEvent("rejected")
		}
	}
	writeJSON(w, http.StatusOK, playResponse{Accepted: accepted, View: p.View()})
}

// POST /api/v1/stop - Stop reading
func (rh *ReaderHandler) Stop(w http.ResponseWriter, r *http.Request) {
	p, ok := rh.panel(w, r)
	if !ok {
		return
	}

	wasPlaying := p.View().State == reader.Playing
	p.Stop()
	if wasPlaying && rh.metrics != nil {
		rh.metrics.SessionEvent("stopped")
	}
	writeJSON(w, http.StatusOK, p.View())
}

// GET /api/v1/audio/{id} - Synthesized clip for the panel's current utterance
func (rh *ReaderHandler) Audio(w http.ResponseWriter, r *http.Request) {
	panelID, err := rh.identity.PanelID(w, r)
	if err != nil {
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}

	id := mux.Vars(r)["id"]
	clip, ok := rh.clips.Get(id)
	if !ok || clip.Room != panelID {
		http.Error(w, "Audio not found", http.StatusNotFound)
		return
	}

	// ServeContent answers Range requests, which Safari needs for <audio>.
	w.Header().Set("Content-Type", clip.Audio.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, id, time.Time{}, bytes.NewReader(clip.Audio.Data))
}

// GET /ws - Attach a tab to the panel's room
func (rh *ReaderHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	panelID, err := rh.identity.PanelID(w, r)
	if err != nil {
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}
	rh.rooms.ServeWS(panelID, w, r)
}

// RegisterRoutes mounts the JSON API on r, which is expected to be the
// /api/v1 subrouter.
func RegisterRoutes(r *mux.Router, rh *ReaderHandler) {
	r.HandleFunc("/state", rh.GetState).Methods("GET")
	r.HandleFunc("/document", rh.UploadDocument).Methods("POST")
	r.HandleFunc("/voices", rh.ListVoices).Methods("GET")
	r.HandleFunc("/voice", rh.SelectVoice).Methods("POST")
	r.HandleFunc("/play", rh.Play).Methods("POST")
	r.HandleFunc("/stop", rh.Stop).Methods("POST")
	r.HandleFunc("/audio/{id}", rh.Audio).Methods("GET")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
