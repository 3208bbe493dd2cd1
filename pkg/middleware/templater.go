package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// Templater reports the route template the underlying router matched for a
// request, e.g. "/tracing/{name}/ok" rather than "/tracing/bazz/ok". The
// second return value is false when no route matched.
//
// Routers expose matched-pattern metadata in router-specific ways; a
// Templater adapts that capability so the tracing middleware stays router
// agnostic.
type Templater interface {
	Template(r *http.Request) (string, bool)
}

// TemplaterFunc adapts a function to the Templater interface.
type TemplaterFunc func(r *http.Request) (string, bool)

// Template calls f.
func (f TemplaterFunc) Template(r *http.Request) (string, bool) {
	return f(r)
}

// MuxTemplater resolves route templates against a gorilla/mux router.
//
// It runs the router's matcher without dispatching, so it works when the
// tracing middleware wraps the router from the outside, where
// mux.CurrentRoute is not yet populated.
type MuxTemplater struct {
	Router *mux.Router
}

// Template returns the path template of the route matching the request.
func (t MuxTemplater) Template(r *http.Request) (string, bool) {
	if t.Router == nil {
		return "", false
	}
	var match mux.RouteMatch
	if !t.Router.Match(r, &match) || match.MatchErr != nil || match.Route == nil {
		return "", false
	}
	template, err := match.Route.GetPathTemplate()
	if err != nil {
		return "", false
	}
	return template, true
}

// templateHolder carries a handler-reported route template back out of the
// request context to the tracing middleware.
type templateHolder struct {
	mu       sync.Mutex
	template string
	set      bool
}

func (h *templateHolder) report(template string) {
	h.mu.Lock()
	h.template = template
	h.set = true
	h.mu.Unlock()
}

func (h *templateHolder) get() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.template, h.set
}

type templateHolderKey struct{}

func withTemplateHolder(ctx context.Context) (context.Context, *templateHolder) {
	holder := &templateHolder{}
	return context.WithValue(ctx, templateHolderKey{}, holder), holder
}

// SetRouteTemplate records the matched route template for the current
// request from inside a handler. It is the escape hatch for routers that
// cannot report matched templates to a Templater: the tracing middleware
// renames the span to the reported template at finalization. A template
// reported this way wins over the Templater's answer. Outside a traced
// request it is a no-op.
func SetRouteTemplate(ctx context.Context, template string) {
	if holder, ok := ctx.Value(templateHolderKey{}).(*templateHolder); ok {
		holder.report(template)
	}
}
