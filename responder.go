package mdns

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Option configures a Responder at construction time, following the
// functional-options idiom the teacher uses for its ServerOption type.
type Option func(*Responder) error

// WithHostname overrides the host name New would otherwise take from
// os.Hostname(). The ".local" suffix is added automatically if absent.
func WithHostname(name string) Option {
	return func(r *Responder) error {
		if err := validateName(name); err != nil {
			return &ValidationError{Field: "hostname", Err: err}
		}
		r.hostname = name
		return nil
	}
}

// WithIPv6 controls whether New starts the IPv6 engine alongside the IPv4
// one. Defaults to true; a host without usable IPv6 multicast should pass
// WithIPv6(false) rather than relying on New's best-effort fallback.
func WithIPv6(enabled bool) Option {
	return func(r *Responder) error {
		r.ipv6 = enabled
		return nil
	}
}

// Task is the long-running responder loop New returns alongside the
// Responder handle. A caller runs it in its own goroutine and cancels ctx
// to shut every engine down; Task returns once all of them have stopped.
type Task func(ctx context.Context) error

// Responder is the host-facing handle returned by New: it owns the shared
// service registry and the command bus used to broadcast registrations,
// TXT updates, and shutdown to every running engine.
type Responder struct {
	log      *zap.Logger
	hostname string
	ipv6     bool

	registry *Registry
	bus      *commandBus
	engines  []*engine
}

// New builds a Responder and its Task. It always starts an IPv4 engine; a
// failure there is fatal to New. If IPv6 is enabled (the default) and its
// engine fails to bind — common on hosts without multicast-capable IPv6 —
// New logs a warning and proceeds IPv4-only rather than failing outright,
// per spec.md §4.2's dual-stack-is-best-effort policy.
func New(opts ...Option) (*Responder, Task, error) {
	r := &Responder{
		log:  zap.NewNop(),
		ipv6: true,
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, nil, err
		}
	}

	if r.hostname == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, nil, fmt.Errorf("mdns: resolve local hostname: %w", err)
		}
		r.hostname = host
	}
	r.hostname = ensureLocalSuffix(r.hostname)

	r.registry = NewRegistry(r.hostname)
	r.bus = newCommandBus(r.log)

	v4, err := newEngine(ipv4Family{}, r.registry, r.bus.newInbox(), r.log)
	if err != nil {
		return nil, nil, err
	}
	r.engines = append(r.engines, v4)

	if r.ipv6 {
		v6, err := newEngine(ipv6Family{}, r.registry, r.bus.newInbox(), r.log)
		if err != nil {
			r.log.Warn("mdns: ipv6 engine unavailable, continuing ipv4-only", zap.Error(err))
		} else {
			r.engines = append(r.engines, v6)
		}
	}

	return r, r.task, nil
}

// task implements Task: it runs every started engine to completion and
// combines their terminal errors. Deliberately a plain errgroup.Group
// rather than errgroup.WithContext — the latter cancels every goroutine's
// derived context on the first error, which would stop a healthy engine
// just because its sibling's socket died. One engine's fatal receive
// error must not stop the others (spec.md §7); task only returns once all
// of them have exited, whether from ctx cancellation, a Shutdown
// broadcast, or their own fatal error.
func (r *Responder) task(ctx context.Context) error {
	var g errgroup.Group
	errs := make([]error, len(r.engines))

	for i, e := range r.engines {
		i, e := i, e
		g.Go(func() error {
			errs[i] = e.run(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}

// Register validates and inserts a new service advertisement, broadcasts
// an unsolicited announcement for it to every running engine, and returns
// a handle for later retraction or TXT update. txt may be nil.
//
// The registry insert happens before the announcement is broadcast, so a
// query concurrently dispatched on any engine either sees the service
// already registered and answers normally, or doesn't see it at all — it
// never observes a half-registered service.
func (r *Responder) Register(typ, instance string, port uint16, txt []string) (*Service, error) {
	if err := validateName(typ); err != nil {
		return nil, &ValidationError{Field: "type", Err: err}
	}
	if err := validateName(instance); err != nil {
		return nil, &ValidationError{Field: "instance", Err: err}
	}
	if err := validateTXT(txt); err != nil {
		return nil, &ValidationError{Field: "txt", Err: err}
	}

	typeFQDN := ensureLocalSuffix(typ)
	data := ServiceData{
		Type:     normalizeName(typeFQDN),
		Instance: normalizeName(instance + "." + typeFQDN),
		Port:     port,
		TXT:      txt,
	}

	id := r.registry.Register(data)
	r.bus.sendUnsolicited(data, defaultTTL, true)

	return &Service{
		id:       id,
		registry: r.registry,
		bus:      r.bus,
	}, nil
}

// Shutdown broadcasts a shutdown command to every running engine. It
// returns once the command has been sent; callers that need to wait for
// engines to actually stop should cancel the context passed to Task
// instead, or wait on Task's return.
func (r *Responder) Shutdown(_ context.Context) error {
	r.bus.sendShutdown()
	return nil
}

// Hostname returns the fully-qualified ".local" host name this responder
// advertises records under.
func (r *Responder) Hostname() string {
	return r.registry.Hostname()
}
