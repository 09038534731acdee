package mdns

import "fmt"

// maxTXTEntryBytes is the RFC 6763 §6.1 limit on a single TXT string.
const maxTXTEntryBytes = 255

// ServiceData is one service advertisement: its DNS-SD type, its full
// instance name, the port it listens on, and its TXT metadata.
type ServiceData struct {
	Type     string   // e.g. "_http._tcp.local."
	Instance string   // e.g. "Web Server._http._tcp.local."
	Port     uint16
	TXT      []string // user-supplied entries; wire-encoded by the codec
}

// ServiceEntry is a ServiceData together with the id the registry assigned
// it at registration time.
type ServiceEntry struct {
	ID uint64
	ServiceData
}

// validateTXT rejects any entry longer than maxTXTEntryBytes, per spec.md
// §3 ("Each user string must be ≤ 255 bytes (otherwise registration
// fails).").
func validateTXT(txt []string) error {
	for _, entry := range txt {
		if len(entry) > maxTXTEntryBytes {
			return fmt.Errorf("txt entry %q is %d bytes, max %d", entry, len(entry), maxTXTEntryBytes)
		}
	}
	return nil
}

// Service is the handle returned by (*Responder).Register. Closing it
// retracts the advertisement: it is removed from the registry and a
// goodbye (TTL=0) announcement is broadcast.
//
// There is no finalizer tying Service's lifetime to garbage collection —
// Go has no Drop trait — so callers must call Close explicitly (typically
// via defer) to retract a service. An unclosed Service simply stays in the
// registry and keeps being answered in queries until the responder itself
// shuts down; it is not periodically re-announced.
type Service struct {
	id       uint64
	registry *Registry
	bus      *commandBus

	closed bool
}

// ID is the registry-assigned identifier for this service.
func (s *Service) ID() uint64 { return s.id }

// Data returns the service's current advertisement as held by the
// registry. Reports false if the service has already been closed.
func (s *Service) Data() (ServiceData, bool) {
	if s.closed {
		return ServiceData{}, false
	}
	return s.registry.FindByID(s.id)
}

// Close retracts the service: removes it from the registry and broadcasts
// a TTL=0 goodbye announcement (with no address records, per spec.md
// §4.3.2/§4.5). Close is idempotent.
func (s *Service) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	data, ok := s.registry.Unregister(s.id)
	if !ok {
		return nil
	}
	s.bus.sendUnsolicited(data, 0, false)
	return nil
}

// UpdateTXT replaces the service's TXT metadata and broadcasts a fresh
// unsolicited announcement so peers pick up the change, without requiring
// re-registration. See SPEC_FULL.md §9 ("TXT record update without
// re-registration").
func (s *Service) UpdateTXT(txt []string) error {
	if err := validateTXT(txt); err != nil {
		return &ValidationError{Field: "txt", Err: err}
	}
	data, ok := s.registry.updateTXT(s.id, txt)
	if !ok {
		return fmt.Errorf("mdns: service %d no longer registered", s.id)
	}
	s.bus.sendUnsolicited(data, defaultTTL, false)
	return nil
}
