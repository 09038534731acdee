package mdns

import (
	"context"
	"net"
	"sync"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// defaultTTL is the TTL (seconds) used for freshly answered or announced
// records; spec.md §4.3.3 and §6.
const defaultTTL = 60

// serviceEnumerationName is the RFC 6763 §9 meta-query name used to
// enumerate registered service types.
const serviceEnumerationName = "_services._dns-sd._udp.local."

// outgoingDatagram is one entry of an engine's outbound FIFO: a built
// packet and the address it's destined for.
type outgoingDatagram struct {
	packet []byte
	dest   net.Addr
}

// engine is one responder engine (spec.md §4.3): a UDP socket for one
// address family, a command inbox, and an outbound FIFO.
// It consumes queries, emits responses, and emits unsolicited
// announcements triggered by commands.
//
// The three cooperative sources spec.md §9 calls out (commands, receive,
// send) are realized here as three goroutines rather than one poll loop,
// because Go sockets block rather than offering a poll/would-block API —
// see SPEC_FULL.md §4.3 for why this still preserves the spec's ordering
// guarantees.
type engine struct {
	af       addressFamily
	conn     net.PacketConn
	registry *Registry
	inbox    <-chan command
	log      *zap.Logger

	outMu  sync.Mutex
	outCnd *sync.Cond
	out    []outgoingDatagram
	closed bool
}

func newEngine(af addressFamily, registry *Registry, inbox <-chan command, log *zap.Logger) (*engine, error) {
	conn, err := af.Bind(log)
	if err != nil {
		return nil, err
	}
	e := &engine{
		af:       af,
		conn:     conn,
		registry: registry,
		inbox:    inbox,
		log:      log,
	}
	e.outCnd = sync.NewCond(&e.outMu)
	return e, nil
}

// run drives the engine until it observes a Shutdown command, its inbox
// closes, the host context is cancelled, or its socket's receive path
// fails fatally. A fatal receive error is returned to the caller; it ends
// only this engine (spec.md §7 policy), not siblings running under the
// same Task.
func (e *engine) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	recvErrCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		recvErrCh <- e.receiveLoop(ctx)
		// Once the receive loop has ended, end commandLoop as well.
		cancel()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.writeLoop(ctx)
	}()

	cmdErr := e.commandLoop(ctx)

	e.stop()
	wg.Wait()

	if recvErr := <-recvErrCh; recvErr != nil {
		return recvErr
	}
	return cmdErr
}

// stop unblocks the receive and write loops. e.closed must be set before
// the socket is closed: receiveLoop checks e.closed under outMu to decide
// whether a ReadFrom error is this deliberate shutdown or a fatal fault,
// and that check must never observe e.closed still false for a close this
// function itself triggered.
func (e *engine) stop() {
	e.outMu.Lock()
	e.closed = true
	e.outMu.Unlock()
	_ = e.conn.Close()
	e.outCnd.Broadcast()
}

// commandLoop drains the command inbox (spec.md §4.3 step 1). It runs in
// the calling goroutine so that a SendUnsolicited command's registry read
// and FIFO push happen without any handoff that could reorder it against
// a concurrently dispatched query (see SPEC_FULL.md §4.3).
func (e *engine) commandLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-e.inbox:
			if !ok {
				e.log.Warn("mdns: command inbox closed without shutdown", zap.String("family", e.af.Name()))
				return nil
			}
			if cmd.shutdown {
				return nil
			}
			e.sendUnsolicited(cmd.svc, cmd.ttl, cmd.includeIP)
		}
	}
}

// receiveLoop drains inbound datagrams (spec.md §4.3 step 2) until the
// socket is closed by stop() or a fatal read error occurs.
func (e *engine) receiveLoop(ctx context.Context) error {
	buf := make([]byte, e.af.MaxPacketSize())
	for {
		n, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			e.outMu.Lock()
			closed := e.closed
			e.outMu.Unlock()
			if closed {
				return nil
			}
			return &ReceiveError{Family: e.af.Name(), Err: err}
		}
		e.handlePacket(append([]byte(nil), buf[:n]...), addr)
	}
}

// writeLoop drains the outbound FIFO in enqueue order (spec.md §4.3 step
// 3), blocking only when the FIFO is empty.
func (e *engine) writeLoop(ctx context.Context) {
	for {
		e.outMu.Lock()
		for len(e.out) == 0 && !e.closed {
			e.outCnd.Wait()
		}
		if e.closed && len(e.out) == 0 {
			e.outMu.Unlock()
			return
		}
		next := e.out[0]
		e.out = e.out[1:]
		e.outMu.Unlock()

		if _, err := e.conn.WriteTo(next.packet, next.dest); err != nil {
			e.log.Warn("mdns: transmit failed", zap.Error(&TransmitError{
				Family: e.af.Name(),
				Dest:   next.dest.String(),
				Err:    err,
			}))
		}
	}
}

func (e *engine) enqueue(packet []byte, dest net.Addr) {
	e.outMu.Lock()
	e.out = append(e.out, outgoingDatagram{packet: packet, dest: dest})
	e.outMu.Unlock()
	e.outCnd.Signal()
}

// handlePacket implements spec.md §4.3.1: parse, drop responses and
// truncated queries, dispatch each question into a unicast or multicast
// answer set depending on its QU bit, and enqueue whichever sets ended up
// non-empty.
func (e *engine) handlePacket(buf []byte, addr net.Addr) {
	var query dns.Msg
	if err := query.Unpack(buf); err != nil {
		e.log.Warn("mdns: couldn't parse packet", zap.Stringer("from", addr), zap.Error(err))
		return
	}

	if query.Response {
		return
	}
	if query.Truncated {
		e.log.Warn("mdns: dropping truncated query", zap.Stringer("from", addr))
		return
	}

	multicast := e.newResponse(query.Id)
	unicast := e.newResponse(query.Id)

	for _, q := range query.Question {
		class := q.Qclass &^ 0x8000
		if class != dns.ClassINET && class != dns.ClassANY {
			continue
		}
		qu := q.Qclass&0x8000 != 0

		answers := e.dispatch(q)
		if len(answers) == 0 {
			continue
		}
		if qu {
			unicast.Answer = append(unicast.Answer, answers...)
		} else {
			multicast.Answer = append(multicast.Answer, answers...)
		}
	}

	if len(multicast.Answer) > 0 {
		if packet, err := multicast.Pack(); err == nil {
			e.enqueue(packet, &net.UDPAddr{IP: e.af.MDNSGroup(), Port: mdnsPort})
		} else {
			e.log.Warn("mdns: failed to build multicast response", zap.Error(err))
		}
	}
	if len(unicast.Answer) > 0 {
		if packet, err := unicast.Pack(); err == nil {
			e.enqueue(packet, addr)
		} else {
			e.log.Warn("mdns: failed to build unicast response", zap.Error(err))
		}
	}
}

func (e *engine) newResponse(id uint16) *dns.Msg {
	m := new(dns.Msg)
	m.Id = id
	m.Response = true
	m.Authoritative = true
	m.Compress = true
	return m
}

// dispatch implements the question-dispatch table of spec.md §4.3.3.
func (e *engine) dispatch(q dns.Question) []dns.RR {
	hostname := e.registry.Hostname()

	switch q.Qtype {
	case dns.TypeA, dns.TypeAAAA, dns.TypeANY:
		if sameName(q.Name, hostname) {
			return e.addrRecords(hostname, defaultTTL)
		}

	case dns.TypePTR:
		if sameName(q.Name, serviceEnumerationName) {
			var answers []dns.RR
			for _, typ := range e.registry.Types() {
				answers = append(answers, &dns.PTR{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: defaultTTL},
					Ptr: typ,
				})
			}
			return answers
		}

		var answers []dns.RR
		for _, svc := range e.registry.FindByType(q.Name) {
			answers = append(answers, e.ptrRR(svc, defaultTTL))
			answers = append(answers, e.srvRR(svc, hostname, defaultTTL))
			answers = append(answers, e.txtRR(svc, defaultTTL))
			answers = append(answers, e.addrRecords(hostname, defaultTTL)...)
		}
		return answers

	case dns.TypeSRV:
		if svc, ok := e.registry.FindByName(q.Name); ok {
			answers := []dns.RR{e.srvRR(svc, hostname, defaultTTL)}
			return append(answers, e.addrRecords(hostname, defaultTTL)...)
		}

	case dns.TypeTXT:
		if svc, ok := e.registry.FindByName(q.Name); ok {
			return []dns.RR{e.txtRR(svc, defaultTTL)}
		}
	}

	return nil
}

// sendUnsolicited implements spec.md §4.3.2: build one response for svc
// with transaction id 0 and enqueue it to the mDNS group. ttl=0 is the
// goodbye form.
func (e *engine) sendUnsolicited(svc ServiceData, ttl uint32, includeIP bool) {
	hostname := e.registry.Hostname()

	m := e.newResponse(0)
	m.Answer = append(m.Answer, e.ptrRR(svc, ttl), e.srvRR(svc, hostname, ttl), e.txtRR(svc, ttl))
	if includeIP {
		m.Answer = append(m.Answer, e.addrRecords(hostname, ttl)...)
	}

	packet, err := m.Pack()
	if err != nil {
		e.log.Warn("mdns: failed to build unsolicited announcement", zap.Error(err))
		return
	}
	e.enqueue(packet, &net.UDPAddr{IP: e.af.MDNSGroup(), Port: mdnsPort})
}

func (e *engine) ptrRR(svc ServiceData, ttl uint32) *dns.PTR {
	return &dns.PTR{
		Hdr: dns.RR_Header{Name: normalizeName(svc.Type), Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: ttl},
		Ptr: normalizeName(svc.Instance),
	}
}

func (e *engine) srvRR(svc ServiceData, hostname string, ttl uint32) *dns.SRV {
	return &dns.SRV{
		Hdr:      dns.RR_Header{Name: normalizeName(svc.Instance), Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: ttl},
		Priority: 0,
		Weight:   0,
		Port:     svc.Port,
		Target:   normalizeName(hostname),
	}
}

func (e *engine) txtRR(svc ServiceData, ttl uint32) *dns.TXT {
	return &dns.TXT{
		Hdr: dns.RR_Header{Name: normalizeName(svc.Instance), Rrtype: dns.TypeTXT, Class: dns.ClassINET, Ttl: ttl},
		Txt: svc.TXT,
	}
}

// addrRecords returns one A or AAAA record (matching this engine's
// family) per non-loopback local interface address, per spec.md §4.3.2
// and §4.3.3.
func (e *engine) addrRecords(hostname string, ttl uint32) []dns.RR {
	addrs, err := localAddrs(e.af.IsV6())
	if err != nil {
		e.log.Warn("mdns: failed to enumerate local addresses", zap.Error(err))
		return nil
	}

	answers := make([]dns.RR, 0, len(addrs))
	for _, ip := range addrs {
		hdr := dns.RR_Header{Name: normalizeName(hostname), Class: dns.ClassINET, Ttl: ttl}
		if e.af.IsV6() {
			hdr.Rrtype = dns.TypeAAAA
			answers = append(answers, &dns.AAAA{Hdr: hdr, AAAA: ip})
		} else {
			hdr.Rrtype = dns.TypeA
			answers = append(answers, &dns.A{Hdr: hdr, A: ip})
		}
	}
	return answers
}
