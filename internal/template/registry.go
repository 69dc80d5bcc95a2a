// Package template resolves per-type notification content. Producers
// are looked up in a registry rather than a central type switch, so
// new notification types are added by registration.
package template

import (
	"fmt"

	apperr "github.com/shivbardolabs/ShipOS-sub002/internal/errors"
	"github.com/shivbardolabs/ShipOS-sub002/internal/model"
)

// Data is the free-form key/value bag merged from customer attributes
// and caller-supplied overrides.
type Data map[string]interface{}

// Content is the rendered snapshot for one notification across both
// channels. Full HTML email rendering is delegated to the external
// template collaborator; EmailBody here is the plain-text fallback.
type Content struct {
	EmailSubject string
	EmailBody    string
	SMSBody      string
}

// Producer renders content for one notification type. Producers must
// be pure: identical data yields identical content.
type Producer func(data Data) Content

// Resolver is the content-resolution boundary consumed by the
// dispatch orchestrator.
type Resolver interface {
	Resolve(t model.NotificationType, data Data) (Content, error)
}

// Registry maps notification types to producers.
type Registry struct {
	producers map[model.NotificationType]Producer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{producers: make(map[model.NotificationType]Producer)}
}

// Register binds a producer to a type, replacing any previous binding.
func (r *Registry) Register(t model.NotificationType, p Producer) {
	r.producers[t] = p
}

// Resolve renders content for the given type. A type with no
// registered producer fails with ErrUnknownTemplate before any side
// effect occurs.
func (r *Registry) Resolve(t model.NotificationType, data Data) (Content, error) {
	p, ok := r.producers[t]
	if !ok {
		return Content{}, fmt.Errorf("%w: %s", apperr.ErrUnknownTemplate, t)
	}
	if data == nil {
		data = Data{}
	}
	return p(data), nil
}

// Str returns data[key] as a string, or def when absent or not a string.
func (d Data) Str(key, def string) string {
	if v, ok := d[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns data[key] as an int, tolerating the float64 values JSON
// decoding produces. Returns def when absent or non-numeric.
func (d Data) Int(key string, def int) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
