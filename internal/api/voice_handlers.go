package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/callwaiting/ttsbridge/internal/media"
	"github.com/callwaiting/ttsbridge/internal/synth"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const (
	defaultGreeting = "Hello, thank you for calling ODIADEV."
	defaultVoice    = "naija_female"

	// synthesisTimeout bounds one backend call regardless of the caller.
	synthesisTimeout = 60 * time.Second

	audioExt = ".mp3"
)

// voiceRequest is the part of the provider's call event we use.
type voiceRequest struct {
	Text  string
	Voice string
}

// parseVoiceRequest reads SpeechResult and voice from the form. Absent or
// empty values fall back to defaults; it never fails.
func parseVoiceRequest(r *http.Request) voiceRequest {
	req := voiceRequest{Text: defaultGreeting, Voice: defaultVoice}
	if v := r.PostForm.Get("SpeechResult"); v != "" {
		req.Text = v
	}
	if v := r.PostForm.Get("voice"); v != "" {
		req.Voice = v
	}
	return req
}

// handleVoice answers the provider's voice webhook. Every outcome is a 200
// with TwiML; failures become the spoken apology here and nowhere else.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	s.stats.calls.Add(1)
	reqID := chimw.GetReqID(r.Context())

	body, err := s.voicePipeline(r)
	if err != nil {
		kind := kindOf(err)
		s.stats.recordFailure(kind)
		slog.Error("voice webhook failed",
			"request_id", reqID,
			"kind", kind.String(),
			"error", err,
		)
		writeTwiML(w, []byte(fallbackTwiML))
		return
	}

	writeTwiML(w, body)
}

// voicePipeline runs parse, allocate, synthesize, persist and render for one
// call event. A panic anywhere inside is returned as an internal failure.
func (s *Server) voicePipeline(r *http.Request) (body []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			body = nil
			err = failure(failInternal, "voice pipeline", fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := r.ParseForm(); err != nil {
		return nil, failure(failInternal, "parsing form", err)
	}
	req := parseVoiceRequest(r)
	name := s.store.AllocateName(audioExt)

	slog.Info("voice webhook received",
		"request_id", chimw.GetReqID(r.Context()),
		"text_len", len(req.Text),
		"voice", req.Voice,
		"file", name,
	)

	audio, err := s.synthesize(r.Context(), req.Text, req.Voice)
	if err != nil {
		return nil, err
	}

	if err := s.store.Write(name, audio); err != nil {
		return nil, failure(failStorage, "writing audio", err)
	}

	attrs := []any{"file", name, "bytes", len(audio)}
	if d, err := media.MP3Duration(audio); err == nil {
		attrs = append(attrs, "duration", d.String())
	}
	slog.Info("voice audio stored", attrs...)

	body, err = playTwiML(s.audioURL(r, name))
	if err != nil {
		return nil, failure(failInternal, "rendering twiml", err)
	}
	return body, nil
}

// synthesize calls the backend on a context that ignores the caller's
// cancellation but carries its values, bounded by synthesisTimeout.
func (s *Server) synthesize(parent context.Context, text, voice string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), synthesisTimeout)
	defer cancel()

	audio, err := s.synth.Synthesize(ctx, text, voice)
	if err != nil {
		var se *synth.Error
		if errors.As(err, &se) && !se.Transport() {
			slog.Warn("synthesis backend rejected request",
				"status", se.StatusCode,
				"message", se.Message,
			)
		}
		return nil, failure(failSynthesis, "synthesizing", err)
	}
	return audio, nil
}
