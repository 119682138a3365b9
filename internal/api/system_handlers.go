package api

import (
	"log/slog"
	"net/http"

	"github.com/callwaiting/ttsbridge/internal/media"
)

const (
	defaultTestText = "Hello, this is a test of the TTS system."
	testNamePrefix  = "test_"
)

type homeResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	TTSURL  string `json:"tts_url"`
	Version string `json:"version"`
}

// handleHome is a liveness summary.
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, homeResponse{
		Status:  "running",
		Service: "ttsbridge",
		TTSURL:  s.synth.URL(),
		Version: Version,
	})
}

type healthResponse struct {
	Status         string `json:"status"`
	TTSEndpoint    string `json:"tts_endpoint"`
	AudioDir       string `json:"audio_dir"`
	AudioDirExists bool   `json:"audio_dir_exists"`
}

// handleHealth reports the backend URL and whether the audio directory is
// still present. It always answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:         "healthy",
		TTSEndpoint:    s.synth.URL(),
		AudioDir:       s.store.Dir(),
		AudioDirExists: s.store.DirExists(),
	})
}

type testTTSResponse struct {
	Status          string   `json:"status"`
	Text            string   `json:"text"`
	Voice           string   `json:"voice"`
	AudioFile       string   `json:"audio_file"`
	AudioURL        string   `json:"audio_url"`
	FileSize        int64    `json:"file_size"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

// handleTestTTS runs one synthesis outside of a call so operators can check
// the backend. text and voice come from the query string or form body.
func (s *Server) handleTestTTS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	text := r.Form.Get("text")
	if text == "" {
		text = defaultTestText
	}
	voice := r.Form.Get("voice")
	if voice == "" {
		voice = defaultVoice
	}

	name := testNamePrefix + s.store.AllocateName(audioExt)

	audio, err := s.synthesize(r.Context(), text, voice)
	if err != nil {
		slog.Error("test tts: synthesis failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.store.Write(name, audio); err != nil {
		slog.Error("test tts: failed to store audio", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	size, err := s.store.Size(name)
	if err != nil {
		slog.Error("test tts: failed to stat audio", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store audio")
		return
	}

	resp := testTTSResponse{
		Status:    "success",
		Text:      text,
		Voice:     voice,
		AudioFile: s.store.Path(name),
		AudioURL:  s.audioURL(r, name),
		FileSize:  size,
	}
	if d, err := media.MP3Duration(audio); err == nil {
		secs := d.Seconds()
		resp.DurationSeconds = &secs
	}

	slog.Info("test tts: audio generated", "file", name, "bytes", size)
	writeJSON(w, http.StatusOK, resp)
}
