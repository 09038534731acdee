// Package mdns is a multicast DNS (RFC 6762) responder with DNS-SD service
// advertisement (RFC 6763). It announces registered services on the local
// link, answers multicast and unicast queries about them, and retracts them
// on shutdown.
//
// mdns is a responder only: it does not browse for other services on the
// network, and it does not perform RFC 6762 §8 probing/conflict detection
// on registration. Callers that need discovery should query the network
// directly with a library built for that (e.g. github.com/miekg/dns).
//
// A minimal host program looks like:
//
//	r, task, err := mdns.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	go func() {
//		if err := task(ctx); err != nil {
//			log.Println("mdns responder stopped:", err)
//		}
//	}()
//
//	svc, err := r.Register("_http._tcp", "My Web Server", 8080, []string{"path=/"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer svc.Close()
package mdns
