// Package policy serves the runtime-configurable message type allow-list and
// the localized bot responses, both stored as system parameter documents.
package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/checkmate/checkmate/internal/database"
	"github.com/checkmate/checkmate/internal/inbound"
)

// Parameter document names.
const (
	ParamSupportedTypes = "supportedTypes"
	ParamResponses      = "userBotResponses"
)

// Response keys.
const (
	ResponseUnsupportedType = "UNSUPPORTED_TYPE"
	ResponseWelcome         = "WELCOME"
)

const (
	// DefaultTTL bounds how stale a cached document can be.
	DefaultTTL = 30 * time.Second
	// MaxTTL is the largest staleness window configuration may ask for.
	MaxTTL = 5 * time.Minute
)

// DefaultSupportedTypes applies when a source has no allow-list.
var DefaultSupportedTypes = []inbound.Type{inbound.TypeText, inbound.TypeImage}

// DefaultResponses are used for keys missing from the responses document.
var DefaultResponses = map[string]string{
	ResponseUnsupportedType: "Sorry, this type of message is not supported yet. Please send us a text or an image.",
	ResponseWelcome:         "Hi! Forward me any message or image you want checked and I will pass it on to our checkers.",
}

// TypeSet is a set of supported message types.
type TypeSet map[inbound.Type]struct{}

// NewTypeSet builds a set from types.
func NewTypeSet(types ...inbound.Type) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

// Contains reports whether t is in the set.
func (s TypeSet) Contains(t inbound.Type) bool {
	_, ok := s[t]
	return ok
}

// Strings returns the members in sorted order.
func (s TypeSet) Strings() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, string(t))
	}
	sort.Strings(out)
	return out
}

// Policy reads parameter documents through a TTL cache. Concurrent misses for
// the same document share one store read. Store errors are never cached.
type Policy struct {
	store     database.Store
	logger    *slog.Logger
	cache     *gocache.Cache
	group     singleflight.Group
	responses map[string]string
}

// Option customizes a Policy.
type Option func(*options)

type options struct {
	ttl       time.Duration
	responses map[string]string
}

// WithTTL sets the cache TTL. Zero keeps the default; values above MaxTTL are clamped.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = min(ttl, MaxTTL)
		}
	}
}

// WithFallbackResponses overrides hardcoded response fallbacks per key.
func WithFallbackResponses(responses map[string]string) Option {
	return func(o *options) {
		for k, v := range responses {
			if v != "" {
				o.responses[k] = v
			}
		}
	}
}

// New creates a Policy backed by store.
func New(store database.Store, logger *slog.Logger, opts ...Option) *Policy {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	o := options{ttl: DefaultTTL, responses: make(map[string]string, len(DefaultResponses))}
	for k, v := range DefaultResponses {
		o.responses[k] = v
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Policy{
		store:     store,
		logger:    logger.With("component", "type_policy"),
		cache:     gocache.New(o.ttl, 2*o.ttl),
		responses: o.responses,
	}
}

// SupportedTypes returns the allow-list for source. A missing, unreadable or
// malformed document, or a null list for source, yields DefaultSupportedTypes.
// An explicit empty list rejects every type.
func (p *Policy) SupportedTypes(ctx context.Context, source string) TypeSet {
	doc, err := p.document(ctx, ParamSupportedTypes)
	if err != nil {
		p.logger.WarnContext(ctx, "Supported types unavailable, using defaults", "source", source, "error", err)
		return NewTypeSet(DefaultSupportedTypes...)
	}

	var bySource map[string][]inbound.Type
	if doc != "" {
		if err := json.Unmarshal([]byte(doc), &bySource); err != nil {
			p.logger.WarnContext(ctx, "Malformed supported types document, using defaults", "error", err)
			bySource = nil
		}
	}

	types, ok := bySource[source]
	if !ok || types == nil {
		return NewTypeSet(DefaultSupportedTypes...)
	}
	return NewTypeSet(types...)
}

// Response returns the localized response for key, falling back to the
// configured defaults.
func (p *Policy) Response(ctx context.Context, key string) string {
	if text := p.storedResponses(ctx)[key]; text != "" {
		return text
	}
	return p.responses[key]
}

func (p *Policy) storedResponses(ctx context.Context) map[string]string {
	doc, err := p.document(ctx, ParamResponses)
	if err != nil {
		p.logger.WarnContext(ctx, "Bot responses unavailable, using defaults", "error", err)
		return nil
	}
	if doc == "" {
		return nil
	}

	var responses map[string]string
	if err := json.Unmarshal([]byte(doc), &responses); err != nil {
		p.logger.WarnContext(ctx, "Malformed bot responses document, using defaults", "error", err)
		return nil
	}
	return responses
}

// SetSupportedTypes replaces the allow-list of one source, keeping the others.
func (p *Policy) SetSupportedTypes(ctx context.Context, source string, types []inbound.Type) error {
	if source == "" {
		return fmt.Errorf("source cannot be empty")
	}

	doc := map[string][]inbound.Type{}
	if err := p.loadFresh(ctx, ParamSupportedTypes, &doc); err != nil {
		return err
	}
	doc[source] = types

	return p.save(ctx, ParamSupportedTypes, doc)
}

// SetResponse stores the response text for key.
func (p *Policy) SetResponse(ctx context.Context, key, text string) error {
	if key == "" {
		return fmt.Errorf("response key cannot be empty")
	}

	doc := map[string]string{}
	if err := p.loadFresh(ctx, ParamResponses, &doc); err != nil {
		return err
	}
	doc[key] = text

	return p.save(ctx, ParamResponses, doc)
}

// Invalidate drops every cached document.
func (p *Policy) Invalidate() {
	p.cache.Flush()
}

// document returns the raw JSON of a parameter, "" when it is unset.
func (p *Policy) document(ctx context.Context, name string) (string, error) {
	if cached, ok := p.cache.Get(name); ok {
		return cached.(string), nil
	}

	v, err, _ := p.group.Do(name, func() (any, error) {
		param, err := p.store.GetParameter(ctx, name)
		if err != nil {
			return "", err
		}

		doc := ""
		if param != nil {
			doc = param.Value
		}
		p.cache.SetDefault(name, doc)
		return doc, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *Policy) loadFresh(ctx context.Context, name string, into any) error {
	param, err := p.store.GetParameter(ctx, name)
	if err != nil {
		return err
	}
	if param == nil || param.Value == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(param.Value), into); err != nil {
		return fmt.Errorf("existing %s document is malformed: %w", name, err)
	}
	return nil
}

func (p *Policy) save(ctx context.Context, name string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := p.store.SetParameter(ctx, name, string(raw)); err != nil {
		return err
	}
	p.cache.Delete(name)
	return nil
}
