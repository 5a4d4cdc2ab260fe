// Package tikfinity serves the web-server integration protocol spoken by
// the TikFinity desktop app: it lists every registered category and action
// and turns "exec" calls into requests on the bus.
package tikfinity

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"triggerd/internal/bus"
	"triggerd/internal/common/logging"
	"triggerd/internal/metrics"
	"triggerd/internal/middleware"
	"triggerd/internal/models"
	"triggerd/internal/providers"
	"triggerd/internal/signature"
)

// AppInfo is returned from /api/app/info.
type AppInfo struct {
	Author  string `json:"author"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Category is one entry of /api/features/categories.
type Category struct {
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
}

// Action is one entry of /api/features/actions.
type Action struct {
	ActionID   string `json:"actionId"`
	ActionName string `json:"actionName"`
}

// ExecRequest is the body of /api/features/actions/exec.
type ExecRequest struct {
	CategoryID     string                 `json:"categoryId"`
	ActionID       string                 `json:"actionId"`
	BypassCooldown bool                   `json:"bypass_cooldown"`
	Context        map[string]interface{} `json:"context"`
}

// triggerTypes names the numeric triggerType TikFinity sends.
var triggerTypes = []string{
	"INVALID", "SHARE", "COMMAND", "GIFT_MIN", "GIFT_SPECIFIC", "JOIN",
	"LIKES", "FOLLOW", "SUBSCRIBE", "CHAT", "EMOTE", "FIRST_USER_ACTIVITY",
}

type Option func(*Bridge)

func WithLogger(logger logging.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(b *Bridge) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithVerifier requires exec calls to carry a valid signature.
func WithVerifier(v *signature.Verifier) Option {
	return func(b *Bridge) { b.verifier = v }
}

func WithInfo(info AppInfo) Option {
	return func(b *Bridge) { b.info = info }
}

// Bridge exposes the providers of a Manager to TikFinity.
type Bridge struct {
	bus      bus.Bus
	manager  *providers.Manager
	verifier *signature.Verifier
	recorder metrics.Recorder
	info     AppInfo
	newID    func() string
	logger   logging.Logger
}

func New(b bus.Bus, manager *providers.Manager, opts ...Option) *Bridge {
	br := &Bridge{
		bus:      b,
		manager:  manager,
		recorder: metrics.Noop(),
		info:     AppInfo{Author: "triggerd", Name: "triggerd", Version: "1.0.0"},
		newID:    uuid.NewString,
		logger:   logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(br)
	}
	br.logger = br.logger.WithFields(logging.String("component", "tikfinity"))
	return br
}

// Router returns the HTTP surface TikFinity polls.
func (b *Bridge) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recover(b.logger), middleware.Logging(b.logger))

	router.HandleFunc("/api/app/info", b.AppInfo).Methods(http.MethodGet)
	router.HandleFunc("/api/features/categories", b.Categories).Methods(http.MethodGet)
	router.HandleFunc("/api/features/actions", b.Actions).Methods(http.MethodGet)

	var exec http.Handler = http.HandlerFunc(b.Exec)
	if b.verifier != nil {
		exec = b.verifier.Middleware(exec)
	}
	router.Handle("/api/features/actions/exec", exec).Methods(http.MethodPost)
	return router
}

type dataResponse struct {
	Data interface{} `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (b *Bridge) AppInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dataResponse{Data: b.info})
}

// Categories lists every category of every provider, in registration order.
func (b *Bridge) Categories(w http.ResponseWriter, r *http.Request) {
	out := []Category{}
	for _, p := range b.manager.List() {
		for _, id := range p.Actions().Categories() {
			out = append(out, Category{CategoryID: id, CategoryName: DisplayName(id)})
		}
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: out})
}

func (b *Bridge) Actions(w http.ResponseWriter, r *http.Request) {
	categoryID := r.URL.Query().Get("categoryId")
	p, ok := b.manager.LookupByCategory(categoryID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, messageResponse{
			Message: "No provider found for categoryId: " + categoryID,
		})
		return
	}

	out := []Action{}
	for _, a := range p.Actions().GetActionMap(categoryID).Actions() {
		out = append(out, Action{ActionID: a.ID, ActionName: a.Name})
	}
	writeJSON(w, http.StatusOK, dataResponse{Data: out})
}

// Exec publishes the requested action for its provider. The response does
// not wait for execution.
func (b *Bridge) Exec(w http.ResponseWriter, r *http.Request) {
	var body ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid JSON body"})
		return
	}
	if body.CategoryID == "" || body.ActionID == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{
			Message: "Invalid request body. Missing 'categoryId' or 'actionId' fields.",
		})
		return
	}

	p, ok := b.manager.LookupByCategory(body.CategoryID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, messageResponse{
			Message: "No provider found for categoryId: " + body.CategoryID,
		})
		return
	}

	if body.Context == nil {
		body.Context = map[string]interface{}{}
	}
	req := models.InternalRequest{
		Caller:         models.CallerTikfinity,
		RequestID:      b.newID(),
		ProviderID:     p.ProviderID(),
		ProviderKey:    models.ProviderKey{CategoryID: body.CategoryID, Actions: []string{body.ActionID}},
		BypassCooldown: body.BypassCooldown,
		Context:        body.Context,
	}

	var names []string
	if a, found := p.Actions().GetActionMap(body.CategoryID).Get(body.ActionID); found {
		names = append(names, a.Name)
	}
	b.notify(r, execMessage(names, body.Context))

	if err := b.bus.Publish(r.Context(), bus.TopicExecuteAction, req); err != nil {
		b.logger.WithContext(r.Context()).Error("Failed to publish request", err,
			logging.String("provider", req.ProviderID))
		writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: err.Error()})
		return
	}
	b.recorder.RequestDispatched(req.ProviderID)

	writeJSON(w, http.StatusOK, dataResponse{Data: []interface{}{}})
}

func (b *Bridge) notify(r *http.Request, message string) {
	b.logger.WithContext(r.Context()).Info(message)
	n := bus.Notification{Severity: string(models.SeverityInfo), Message: message, Source: "tikfinity"}
	if err := b.bus.Publish(r.Context(), bus.TopicNotification, n); err != nil {
		b.logger.Debug("Notification not delivered", logging.Err(err))
	}
}

// execMessage renders "Action 'a' executed by 'user(nick)' from trigger T with N coins".
func execMessage(names []string, ctx map[string]interface{}) string {
	username, _ := ctx["username"].(string)
	if username == "" {
		username = "<<unknown>>"
	}
	nickname, _ := ctx["nickname"].(string)

	msg := fmt.Sprintf("Action '%s' executed by '%s(%s)' from trigger %s",
		strings.Join(names, ", "), username, nickname, triggerType(ctx["triggerType"]))
	if coins, ok := ctx["coins"]; ok && coins != nil && coins != float64(0) {
		msg += fmt.Sprintf(" with %v coins", coins)
	}
	return msg
}

func triggerType(v interface{}) string {
	switch t := v.(type) {
	case float64:
		if i := int(t); float64(i) == t && i >= 0 && i < len(triggerTypes) {
			return triggerTypes[i]
		}
	case string:
		for _, name := range triggerTypes {
			if strings.EqualFold(name, t) {
				return name
			}
		}
	}
	return "UNKNOWN"
}

// DisplayName turns "scene-switcher" into "Scene Switcher".
func DisplayName(id string) string {
	words := strings.Split(id, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
