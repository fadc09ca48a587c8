package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/plusolver/internal/adapters/mq/worker"
	service "github.com/okian/plusolver/internal/app"
	"github.com/okian/plusolver/internal/domain/types"
	"github.com/okian/plusolver/pkg/logger"
)

// SessionHandler runs quiz sessions for a request's credentials.
type SessionHandler struct {
	deps   Dependencies
	auth   AuthFactory
	logger logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps Dependencies, auth AuthFactory, l logger.Logger) *SessionHandler {
	return &SessionHandler{deps: deps, auth: auth, logger: l}
}

func runOptions(req types.SessionRequest) service.RunOptions {
	return service.RunOptions{Target: req.TargetScore, FullKnowledge: req.FullKnowledge}
}

// HandleRunSession handles POST /run-session. The run is bound to the
// request and its result is returned as one JSON document.
func (h *SessionHandler) HandleRunSession(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSession(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	res, err := h.deps.Solve(r.Context(), h.auth(req.Credentials()), runOptions(req), service.Discard)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types.SessionResponse{Status: "success", Data: res})
}

// HandleRunSessionStream handles POST /run-session-stream. Admission errors
// are plain JSON; once admitted every event is written as an SSE data frame
// until the closed event. A client that disconnects stops receiving but the
// run carries on.
func (h *SessionHandler) HandleRunSessionStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", ErrStreaming)
		return
	}

	req, err := decodeSession(r)
	if err != nil {
		writeFailure(w, err)
		return
	}

	run, err := h.deps.Stream(r.Context(), h.auth(req.Credentials()), runOptions(req))
	if err != nil {
		writeFailure(w, err)
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	hdr.Set("X-Run-ID", run.ID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	relay := worker.NewRelay(run.Events, &sseSink{w: w, flusher: flusher},
		worker.WithName("sse"),
		worker.WithPollInterval(h.deps.PollInterval()),
		worker.WithLogger(h.logger),
	)
	if err := relay.Run(r.Context()); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn(r.Context(), "event stream ended early",
			logger.String("run_id", run.ID),
			logger.Error(err))
		return
	}
	if r.Context().Err() != nil {
		h.logger.Info(context.WithoutCancel(r.Context()), "client left event stream; run continues",
			logger.String("run_id", run.ID))
	}
}

// sseSink writes events as server-sent event data frames.
type sseSink struct {
	w       io.Writer
	flusher http.Flusher
}

func (s *sseSink) Send(_ context.Context, e worker.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
