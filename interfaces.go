package mdns

import "net"

// localAddrs returns every non-loopback local IP address of the requested
// family. It is the interface-enumeration collaborator spec.md §6
// describes: re-enumerated on every call (never cached), so interface
// changes are picked up on the next query without restarting the
// responder. Grounded on the teacher's addrsForInterface (server.go),
// collapsed to whole-host scope since this registry is multi-service and
// every engine answers for the whole host, not one interface at a time.
func localAddrs(v6 bool) ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []net.IP
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			ip4 := ipNet.IP.To4()
			if v6 {
				if ip4 == nil {
					out = append(out, ipNet.IP)
				}
			} else if ip4 != nil {
				out = append(out, ip4)
			}
		}
	}
	return out, nil
}
