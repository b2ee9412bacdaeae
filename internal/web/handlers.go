package web

import (
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net/http"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"hubhelper/internal/hub"
	"hubhelper/internal/hub/metrics"
	"hubhelper/internal/validator"
)

const (
	msgSent     = "Event sent successfully."
	msgTooLarge = "Event is too large for the batch."
	msgFormSize = "Form exceeds the 4 MiB size limit."

	maxFormBytes = 4 << 20
)

// SendResponse is the JSON body returned by the send endpoint.
type SendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type homeView struct {
	Events    []hub.EventContent
	ReadError bool
	RequestID string
}

type errorView struct {
	Status    int
	RequestID string
}

// Handlers serves the web front-end.
type Handlers struct {
	publisher hub.Publisher
	reader    hub.Reader
	registry  *metrics.Registry
	logger    *zap.Logger
	pages     map[string]*template.Template
}

func NewHandlers(publisher hub.Publisher, reader hub.Reader, registry *metrics.Registry, logger *zap.Logger) (*Handlers, error) {
	h := Handlers{
		publisher: publisher,
		reader:    reader,
		registry:  registry,
		logger:    logger,
	}

	if err := validator.Validate("web handlers", h.publisher, h.reader, h.registry, h.logger); err != nil {
		return nil, fmt.Errorf("failed to validate web handler deps: %w", err)
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	h.pages = pages
	h.logger = h.logger.Named("web")

	return &h, nil
}

// Routes returns the front-end's handler with middleware applied.
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.home)
	mux.HandleFunc("GET /Events", h.events)
	mux.HandleFunc("POST /Events/Send", h.send)
	mux.HandleFunc("GET /Home/Error", h.errorPage)
	mux.HandleFunc("GET /healthz", h.healthz)

	return withRequestID(withAccessLog(h.logger, h.registry, h.withRecovery(mux)))
}

// home lists every event the hub still retains. A failed read is logged and
// the page renders whatever was read before the failure.
func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	events, err := h.reader.ListRecent(r.Context())
	if err != nil {
		h.logger.Error("error while reading events from event hub",
			zap.String("request_id", RequestID(r.Context())),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}

	h.render(w, r, http.StatusOK, "home.html", homeView{
		Events:    events,
		ReadError: err != nil,
		RequestID: RequestID(r.Context()),
	})
}

func (h *Handlers) events(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "events.html", nil)
}

// send publishes the Payload form field. Failures are always reported to the
// caller.
func (h *Handlers) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := parseForm(r); err != nil {
		if maxErr := new(http.MaxBytesError); errors.As(err, &maxErr) {
			h.writeJSON(w, http.StatusBadRequest, SendResponse{Message: msgFormSize})
			return
		}
		h.writeJSON(w, http.StatusInternalServerError, SendResponse{Message: err.Error()})
		return
	}

	req := hub.EventRequest{Payload: r.PostFormValue("Payload")}

	err := h.publisher.Publish(r.Context(), req.Payload)
	if err != nil && !errors.Is(err, hub.ErrInvalidPayload) && !errors.Is(err, hub.ErrEventTooLarge) {
		h.logger.Error("failed to publish event",
			zap.String("request_id", RequestID(r.Context())),
			zap.Error(err),
		)
	}

	status, resp := sendResult(err)
	h.writeJSON(w, status, resp)
}

// sendResult maps a publish outcome onto a status code and response body.
func sendResult(err error) (int, SendResponse) {
	switch {
	case err == nil:
		return http.StatusOK, SendResponse{Success: true, Message: msgSent}
	case errors.Is(err, hub.ErrEventTooLarge):
		return http.StatusBadRequest, SendResponse{Message: msgTooLarge}
	default:
		return http.StatusInternalServerError, SendResponse{Message: err.Error()}
	}
}

func (h *Handlers) errorPage(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusOK)
}

func (h *Handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "hubhelper"})
}

func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, status int) {
	w.Header().Set("Cache-Control", "no-store, no-cache")
	h.render(w, r, status, "error.html", errorView{
		Status:    status,
		RequestID: RequestID(r.Context()),
	})
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxFormBytes); err != nil {
			return fmt.Errorf("failed to read form: %w", err)
		}
		return nil
	}

	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("failed to read form: %w", err)
	}
	return nil
}
