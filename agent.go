package agent

import (
	"io"
	"log/slog"
)

type Agent struct {
	completionFunc CompletionFunc
	memory         *Memory
	dispatcher     Dispatcher
	maxRounds      int
	logger         *slog.Logger
}

type Option func(a *Agent)

// WithMiddleware wraps the completion function. Middleware added first ends
// up closest to the provider.
func WithMiddleware(m MiddlewareFunc) Option {
	return func(a *Agent) {
		a.completionFunc = m(a.completionFunc)
	}
}

func WithMemory(m *Memory) Option {
	return func(a *Agent) {
		a.memory = m
	}
}

func WithDispatcher(d Dispatcher) Option {
	return func(a *Agent) {
		a.dispatcher = d
	}
}

// WithMaxRounds limits how many rounds of tool calls a single turn may run.
// Zero means no limit.
func WithMaxRounds(n int) Option {
	return func(a *Agent) {
		a.maxRounds = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = l
	}
}

func New(c CompletionFunc, opts ...Option) *Agent {
	a := &Agent{
		completionFunc: c,
		memory:         NewMemory(DefaultMemoryCapacity),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, o := range opts {
		o(a)
	}

	return a
}

// NewFromAgent creates a new agent based on an existing agent.
//
// The new agent shares the completion function and tools of the original but
// owns a copy of its memory, so separate sessions never see each other's
// turns.
func NewFromAgent(a *Agent) *Agent {
	mem := NewMemory(a.memory.Capacity())
	for _, m := range a.memory.Messages() {
		mem.AddMessage(m)
	}

	return &Agent{
		completionFunc: a.completionFunc,
		memory:         mem,
		dispatcher:     a.dispatcher,
		maxRounds:      a.maxRounds,
		logger:         a.logger,
	}
}

func (a *Agent) Memory() *Memory {
	return a.memory
}

func (a *Agent) Add(role Role, content string) *Agent {
	a.memory.Add(role, content)
	return a
}

func (a *Agent) Messages() []*Message {
	return a.memory.Messages()
}
