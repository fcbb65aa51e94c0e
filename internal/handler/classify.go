package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"motorwatch/internal/config"
	"motorwatch/internal/dto"
	"motorwatch/internal/ingest"
	"motorwatch/internal/logger"
	"motorwatch/internal/model"
	"motorwatch/internal/service"
)

// FrameHandler processes one frame and responds through responder.
type FrameHandler interface {
	Handle(ctx context.Context, frame *model.Frame, responder service.Responder) error
}

// UploadHandler handles POST /upload: a multipart "image" field or a JSON
// body, with an optional device id.
func UploadHandler(manager FrameHandler, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return classifyHandler(manager, cfg, logger, false)
}

// ClassifyHandler handles POST /classify: JSON only, device id required.
func ClassifyHandler(manager FrameHandler, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return classifyHandler(manager, cfg, logger, true)
}

func classifyHandler(manager FrameHandler, cfg *config.Config, logger *logger.Logger, strict bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}

		kind, err := ingest.SelectHTTPSource(r.Header.Get("Content-Type"))
		if err == nil && strict && kind != model.SourceJSON {
			err = model.ErrUnsupportedMediaType
		}
		if err != nil {
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}

		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}

		now := time.Now().UTC()
		var frame *model.Frame
		if kind == model.SourceMultipart {
			frame, err = ingest.FromMultipart(r, cfg.MaxUploadBytes, now)
		} else {
			frame, err = ingest.FromJSON(r.Body, strict, now)
		}
		if err != nil {
			logger.Warning("Rejected %s from %s: %v", r.URL.Path, r.RemoteAddr, err)
			writeError(w, statusFor(err), errorMessage(err))
			return
		}
		defer frame.Close()

		responder := &httpResponder{w: w, label: cfg.TargetLabel, logger: logger}
		if err := manager.Handle(r.Context(), frame, responder); err != nil {
			logger.Error("Could not respond to %s: %v", frame.DeviceID, err)
			if !responder.written {
				writeError(w, http.StatusInternalServerError, err.Error())
			}
		}
	}
}

// httpResponder writes the classification result as the HTTP response body.
type httpResponder struct {
	w       http.ResponseWriter
	label   string
	logger  *logger.Logger
	written bool
}

func (h *httpResponder) Transport() model.Transport { return model.TransportHTTP }

func (h *httpResponder) Respond(_ context.Context, frame *model.Frame, result *model.Result, err error) error {
	if h.written {
		return errors.New("response already written")
	}
	h.written = true

	if err != nil {
		resp := dto.NewErrorResponse(frame.DeviceID, err)
		return writeJSON(h.w, statusFor(err), resp)
	}
	return writeJSON(h.w, http.StatusOK, dto.NewClassifyResponse(frame.DeviceID, h.label, result))
}

// statusFor maps the typed pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case model.IsValidation(err), model.IsDecode(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(err error) string {
	var v *model.ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return errors.Wrap(json.NewEncoder(w).Encode(body), "failed to encode response")
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message})
}
