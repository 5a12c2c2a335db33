package hostscan

import (
	"log/slog"
	"net"

	"github.com/jonboulle/clockwork"

	"github.com/foctal/netprobe/internal/rawsock"
)

// receiveLoop is the shared receive task for one socket (§4.5 step 4): it
// reads datagrams until conn is closed, discards anything that doesn't
// parse as a valid echo reply, and otherwise demuxes by source IP into
// pending. Returning is the normal exit once the engine closes conn to
// unwind the fanout (step 7); RecvFrom never otherwise returns an error in
// this design.
func receiveLoop(conn *rawsock.Conn, pending *pendingTable, clock clockwork.Clock, log *slog.Logger) {
	buf := make([]byte, 2048)
	for {
		n, addr, err := conn.RecvFrom(buf)
		if err != nil {
			return
		}
		recvAt := clock.Now()

		ipAddr, ok := addr.(*net.IPAddr)
		if !ok {
			continue
		}

		var reply *rawsock.EchoReply
		if conn.Family() == rawsock.FamilyV4 {
			reply = rawsock.ParseICMPEchoV4(buf[:n])
		} else {
			reply = rawsock.ParseICMPEchoV6Trusted(buf[:n])
		}
		if reply == nil {
			continue
		}

		if !pending.fulfil(ipAddr.IP, recvAt) {
			log.Debug("hostscan: echo reply for unknown or expired target", "ip", ipAddr.IP)
		}
	}
}
