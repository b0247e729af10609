package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/logger"
	"github.com/isdmx/e2bbox/sandbox"
)

// Sessions is the part of the session registry the actions use
type Sessions interface {
	GetOrCreate(ctx context.Context, ownerID string) (*sandbox.Handle, error)
	Close(ctx context.Context, ownerID string) error
	ListAll(ctx context.Context) ([]sandbox.Info, error)
	Client() sandbox.Client
}

// Plugin owns the action set and runs actions against the session registry
type Plugin struct {
	logger   *zap.Logger
	sessions Sessions
	metrics  *Metrics
	actions  []*Action
	index    map[string]*Action
}

// New builds every action. Names and similes must be unique across actions.
func New(log *zap.Logger, sessions Sessions, metrics *Metrics) (*Plugin, error) {
	examples, err := loadExamples()
	if err != nil {
		return nil, err
	}

	p := &Plugin{
		logger:   log.With(zap.String("component", "actions")),
		sessions: sessions,
		metrics:  metrics,
		index:    make(map[string]*Action),
	}

	for _, def := range codeActions {
		lang, err := sandbox.LookupLanguage(def.language)
		if err != nil {
			return nil, err
		}
		if err := p.register(p.codeAction(lang, def.similes, def.description)); err != nil {
			return nil, err
		}
	}
	for _, a := range []*Action{p.readFileAction(), p.writeFileAction(), p.listSandboxesAction(), p.closeSandboxAction()} {
		if err := p.register(a); err != nil {
			return nil, err
		}
	}

	for _, a := range p.actions {
		a.Examples = examples[a.Name]
	}

	return p, nil
}

func (p *Plugin) register(a *Action) error {
	for _, key := range append([]string{a.Name}, a.Similes...) {
		key = strings.ToUpper(key)
		if other, ok := p.index[key]; ok && other != a {
			return fmt.Errorf("action name %s of %s already used by %s", key, a.Name, other.Name)
		}
		p.index[key] = a
	}
	p.actions = append(p.actions, a)
	return nil
}

// Actions returns the registered actions in registration order
func (p *Plugin) Actions() []*Action {
	out := make([]*Action, len(p.actions))
	copy(out, p.actions)
	return out
}

// Lookup finds an action by name or simile, ignoring case
func (p *Plugin) Lookup(name string) (*Action, bool) {
	a, ok := p.index[strings.ToUpper(strings.TrimSpace(name))]
	return a, ok
}

// Dispatch runs the action called name
func (p *Plugin) Dispatch(ctx context.Context, name string, msg Message, cb Callback) (*Content, error) {
	a, ok := p.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown action: %s", name)
	}
	return p.Invoke(ctx, a, msg, cb), nil
}

// Invoke validates msg and runs the action. The response is also passed to cb
// when it is not nil.
func (p *Plugin) Invoke(ctx context.Context, a *Action, msg Message, cb Callback) *Content {
	log := logger.ForAction(p.logger, a.Name, msg.OwnerID())

	start := time.Now()

	var content *Content
	if a.Validate != nil {
		if err := a.Validate(msg); err != nil {
			content = a.respond(msg, a.failText(err), OutcomeValidationError)
		}
	}
	if content == nil {
		content = a.handle(ctx, log, msg)
	}

	elapsed := time.Since(start)
	p.metrics.observe(a.Name, content.Outcome, elapsed)

	if content.Outcome.Normal() {
		log.Info("action completed",
			zap.String("outcome", string(content.Outcome)),
			zap.Duration("duration", elapsed))
	} else {
		log.Error("action failed",
			zap.String("outcome", string(content.Outcome)),
			zap.Duration("duration", elapsed),
			zap.String("response", content.Text))
	}

	if cb != nil {
		if err := cb(ctx, content); err != nil {
			log.Warn("response callback failed", zap.Error(err))
		}
	}

	return content
}

func (a *Action) respond(msg Message, text string, outcome Outcome) *Content {
	return &Content{
		Text:    text,
		Actions: []string{a.Name},
		Source:  msg.Source,
		Outcome: outcome,
	}
}
