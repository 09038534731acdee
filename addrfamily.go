package mdns

import (
	"context"
	"net"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// mdnsPort is the well-known mDNS port (RFC 6762 §5).
const mdnsPort = 5353

// addressFamily is the small capability bundle spec.md §4.2 calls for:
// the any-local bind address, the mDNS multicast group, socket
// construction with reuse-address/reuse-port, and multicast-group join.
// ipv4Family and ipv6Family are its two stateless instantiations — this is
// the Go rendering of the original's address_family.rs AddressFamily trait
// (Inet/Inet6), kept as runtime dispatch rather than duplicated engine
// types (see SPEC_FULL.md §12).
type addressFamily interface {
	// Name identifies the family for logging ("ipv4" / "ipv6").
	Name() string
	// Network is the net package's network string ("udp4" / "udp6").
	Network() string
	// MaxPacketSize is the largest datagram this family will emit or
	// accept (RFC 6762 §17 effectively caps mDNS at the classic 65535).
	MaxPacketSize() int
	// AnyAddr is the any-local bind address (0.0.0.0 or ::).
	AnyAddr() net.IP
	// MDNSGroup is the mDNS multicast group address for this family.
	MDNSGroup() net.IP
	// IsV6 reports whether this family advertises AAAA (vs A) records.
	IsV6() bool
	// Bind creates a socket bound to (AnyAddr, mdnsPort) with
	// SO_REUSEADDR set and SO_REUSEPORT attempted (best-effort — any
	// failure is logged via log and otherwise ignored), and joins the
	// mDNS multicast group on the any-interface.
	Bind(log *zap.Logger) (net.PacketConn, error)
}

type ipv4Family struct{}
type ipv6Family struct{}

func (ipv4Family) Name() string         { return "ipv4" }
func (ipv4Family) Network() string      { return "udp4" }
func (ipv4Family) MaxPacketSize() int   { return 65535 }
func (ipv4Family) AnyAddr() net.IP      { return net.IPv4zero }
func (ipv4Family) MDNSGroup() net.IP    { return net.IPv4(224, 0, 0, 251) }
func (ipv4Family) IsV6() bool           { return false }

func (f ipv4Family) Bind(log *zap.Logger) (net.PacketConn, error) {
	conn, err := bindReuse(log, f.Network(), f.AnyAddr(), mdnsPort)
	if err != nil {
		return nil, &BindError{Family: f.Name(), Op: "bind", Err: err}
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(nil, &net.UDPAddr{IP: f.MDNSGroup()}); err != nil {
		_ = conn.Close()
		return nil, &BindError{Family: f.Name(), Op: "join multicast group", Err: err}
	}
	return conn, nil
}

func (ipv6Family) Name() string       { return "ipv6" }
func (ipv6Family) Network() string    { return "udp6" }
func (ipv6Family) MaxPacketSize() int { return 65535 }
func (ipv6Family) AnyAddr() net.IP    { return net.IPv6unspecified }
func (ipv6Family) MDNSGroup() net.IP  { return net.ParseIP("ff02::fb") }
func (ipv6Family) IsV6() bool         { return true }

func (f ipv6Family) Bind(log *zap.Logger) (net.PacketConn, error) {
	conn, err := bindReuse(log, f.Network(), f.AnyAddr(), mdnsPort)
	if err != nil {
		return nil, &BindError{Family: f.Name(), Op: "bind", Err: err}
	}
	pc := ipv6.NewPacketConn(conn)
	if err := pc.JoinGroup(nil, &net.UDPAddr{IP: f.MDNSGroup()}); err != nil {
		_ = conn.Close()
		return nil, &BindError{Family: f.Name(), Op: "join multicast group", Err: err}
	}
	return conn, nil
}

// bindReuse opens a UDP socket with SO_REUSEADDR set and SO_REUSEPORT
// attempted, via the platform-specific control function in
// sockopts_unix.go / sockopts_windows.go. log receives a warning if
// SO_REUSEPORT can't be set; that alone never fails the bind.
func bindReuse(log *zap.Logger, network string, ip net.IP, port int) (net.PacketConn, error) {
	lc := net.ListenConfig{Control: newReusePortControl(log)}
	return lc.ListenPacket(context.Background(), network, net.JoinHostPort(ip.String(), strconv.Itoa(port)))
}
