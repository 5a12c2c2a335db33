package traceroute

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/rawsock"
)

func embeddedV4(udpSrcPort, udpDstPort int) []byte {
	ipHeader := make([]byte, 20)
	ipHeader[0] = 0x45 // version 4, IHL 5 (20 bytes)
	udp := make([]byte, 8)
	binary.BigEndian.PutUint16(udp[0:2], uint16(udpSrcPort))
	binary.BigEndian.PutUint16(udp[2:4], uint16(udpDstPort))
	return append(ipHeader, udp...)
}

func embeddedICMPv4(id, seq uint16) []byte {
	ipHeader := make([]byte, 20)
	ipHeader[0] = 0x45
	icmpHdr := make([]byte, 8)
	binary.BigEndian.PutUint16(icmpHdr[4:6], id)
	binary.BigEndian.PutUint16(icmpHdr[6:8], seq)
	return append(ipHeader, icmpHdr...)
}

func TestMatchesProbe_udp_matchesOnDestinationPort(t *testing.T) {
	t.Parallel()

	embedded := embeddedV4(54321, 33434+5)
	require.True(t, matchesProbe(model.TraceProtocolUDP, embedded, 0, 0, 33434+5))
	require.False(t, matchesProbe(model.TraceProtocolUDP, embedded, 0, 0, 33434+6))
}

func TestMatchesProbe_icmp_matchesOnIDAndSeq(t *testing.T) {
	t.Parallel()

	embedded := embeddedICMPv4(0xBEEF, 7)
	require.True(t, matchesProbe(model.TraceProtocolICMP, embedded, 0xBEEF, 7, 0))
	require.False(t, matchesProbe(model.TraceProtocolICMP, embedded, 0xBEEF, 8, 0))
	require.False(t, matchesProbe(model.TraceProtocolICMP, embedded, 0xCAFE, 7, 0))
}

func TestMatchesProbe_tooShort_returnsFalse(t *testing.T) {
	t.Parallel()

	require.False(t, matchesProbe(model.TraceProtocolICMP, []byte{0x45}, 1, 1, 0))
}

func TestTypeEchoReply_differsByFamily(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, typeEchoReply(rawsock.FamilyV4), typeEchoReply(rawsock.FamilyV6))
}
