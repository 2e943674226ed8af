package expiry

import (
	"log/slog"
	"sync"

	"github.com/vango-dev/authgate/pkg/metrics"
)

// Presenter shows and hides the session-expired prompt.
//
// Methods are called with the Prompt's lock held, in transition order,
// and must not call back into the Prompt.
type Presenter interface {
	ShowExpired()
	HideExpired()
}

// PresenterFuncs adapts functions to a Presenter. Nil fields are no-ops.
type PresenterFuncs struct {
	Show func()
	Hide func()
}

func (p PresenterFuncs) ShowExpired() {
	if p.Show != nil {
		p.Show()
	}
}

func (p PresenterFuncs) HideExpired() {
	if p.Hide != nil {
		p.Hide()
	}
}

// Prompt is an idempotent latch: at most one presentation is active.
type Prompt struct {
	mu        sync.Mutex
	active    bool
	presenter Presenter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// PromptOption configures a Prompt.
type PromptOption func(*Prompt)

// WithPresenter sets the presenter notified on transitions.
func WithPresenter(p Presenter) PromptOption {
	return func(pr *Prompt) {
		pr.presenter = p
	}
}

// WithMetrics records signals and the active gauge.
func WithMetrics(m *metrics.Metrics) PromptOption {
	return func(pr *Prompt) {
		pr.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PromptOption {
	return func(pr *Prompt) {
		pr.logger = l
	}
}

// NewPrompt creates an inactive prompt.
func NewPrompt(opts ...PromptOption) *Prompt {
	p := &Prompt{
		logger: slog.Default().With("component", "expiry-prompt"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Raise activates the prompt. It returns false, and presents nothing,
// when the prompt is already active.
func (p *Prompt) Raise() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.metrics.RecordExpirySignal()
	if p.active {
		p.logger.Debug("session expired signal ignored, prompt already active")
		return false
	}
	p.active = true
	p.metrics.SetPromptActive(true)
	p.logger.Info("session expired, prompting user")
	if p.presenter != nil {
		p.presenter.ShowExpired()
	}
	return true
}

// Dismiss deactivates the prompt. It returns false when it was not active.
func (p *Prompt) Dismiss() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		return false
	}
	p.active = false
	p.metrics.SetPromptActive(false)
	if p.presenter != nil {
		p.presenter.HideExpired()
	}
	return true
}

// Active reports whether the prompt is shown.
func (p *Prompt) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}
