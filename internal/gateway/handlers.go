package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"mdtoml/internal/agent"
	"mdtoml/internal/llm"
	"mdtoml/internal/pipeline"
)

type pipelineRequest struct {
	SessionID  string `json:"session_id"`
	Markdown   string `json:"markdown"`
	Engine     string `json:"engine"`
	MaxRepairs *int   `json:"max_repairs"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]llm.ToolDescriptor{"tools": s.registry.Descriptors()})
}

func resultStatus(res agent.Result) int {
	switch res.Kind {
	case agent.KindOK:
		return http.StatusOK
	case agent.KindUnknownTool:
		return http.StatusNotFound
	case agent.KindInvalidParams:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// handleExecTool dispatches the JSON object body to the named tool. The body
// of the response is always the dispatch Result; the status mirrors its kind.
func (s *Server) handleExecTool(w http.ResponseWriter, r *http.Request) {
	var input map[string]any
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&input)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return
	}

	d := s.dispatcher(r.Header.Get(sessionHeader))
	res := d.Execute(r.Context(), r.PathValue("name"), input)
	writeJSON(w, resultStatus(res), res)
}

// handlePipeline streams each step as a "step" event and finishes with a
// "report" or "error" event.
func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	var req pipelineRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Markdown == "" {
		writeError(w, http.StatusBadRequest, "markdown is required")
		return
	}

	engine := s.opts.Engine
	if req.Engine != "" {
		e, err := pipeline.ParseEngine(req.Engine)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		engine = e
	}
	maxRepairs := s.opts.MaxRepairs
	if req.MaxRepairs != nil {
		maxRepairs = *req.MaxRepairs
	}

	events := newEventWriter(w)
	p := pipeline.New(s.dispatcher(req.SessionID),
		pipeline.WithEngine(engine),
		pipeline.WithMaxRepairs(maxRepairs),
		pipeline.WithObserver(func(res agent.Result) {
			if err := events.send("step", res); err != nil {
				slog.Warn("sending step failed", "tool_name", res.ToolName, "error", err)
			}
		}),
	)

	event, payload := "report", any(nil)
	report, err := p.Run(r.Context(), req.Markdown)
	if err != nil {
		event, payload = "error", errorBody{Error: err.Error()}
	} else {
		payload = report
	}
	if err := events.send(event, payload); err != nil {
		slog.Warn("sending final event failed", "event", event, "error", err)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.Store == nil {
		writeError(w, http.StatusNotFound, "audit is disabled")
		return
	}
	rows, err := s.opts.Store.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("reading session failed", "session_id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "reading session failed")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": r.PathValue("id"), "executions": rows})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
