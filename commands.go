package mdns

import "go.uber.org/zap"

// command is the fan-out message type each engine's inbox consumes. It is
// the Go rendering of the original's fsm.rs Command enum.
type command struct {
	shutdown bool

	// Fields below are only meaningful when shutdown is false.
	svc       ServiceData
	ttl       uint32
	includeIP bool
}

func shutdownCommand() command { return command{shutdown: true} }

func unsolicitedCommand(svc ServiceData, ttl uint32, includeIP bool) command {
	return command{svc: svc, ttl: ttl, includeIP: includeIP}
}

// commandBus holds one inbox channel per running engine and broadcasts
// commands to all of them, following lib.rs's CommandSender. Each inbox is
// buffered: the original's mpsc::UnboundedSender never blocks, which a Go
// channel cannot do without an unbounded custom queue; a generous buffer
// plus a non-blocking, log-and-drop fallback on a full inbox is the
// closest safe analogue (see DESIGN.md) and keeps one wedged engine from
// stalling registration of a service on every other engine.
type commandBus struct {
	inboxes []chan command
	log     *zap.Logger
}

// inboxCapacity bounds how many outstanding commands an engine can fall
// behind on before the bus starts dropping (and logging) rather than
// blocking the caller.
const inboxCapacity = 256

func newCommandBus(log *zap.Logger) *commandBus {
	return &commandBus{log: log}
}

// newInbox allocates and registers a new engine inbox, returning the
// receive side for the engine to consume.
func (b *commandBus) newInbox() <-chan command {
	ch := make(chan command, inboxCapacity)
	b.inboxes = append(b.inboxes, ch)
	return ch
}

// send broadcasts cmd to every registered inbox. A full inbox is logged
// and skipped rather than blocking the other engines.
func (b *commandBus) send(cmd command) {
	for _, inbox := range b.inboxes {
		select {
		case inbox <- cmd:
		default:
			b.log.Warn("mdns: engine command inbox full, dropping command")
		}
	}
}

func (b *commandBus) sendUnsolicited(svc ServiceData, ttl uint32, includeIP bool) {
	b.send(unsolicitedCommand(svc, ttl, includeIP))
}

func (b *commandBus) sendShutdown() {
	b.send(shutdownCommand())
}
