package rawsock

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestICMPEchoV4_roundTrips(t *testing.T) {
	t.Parallel()

	src := net.ParseIP("192.0.2.1")
	dst := net.ParseIP("192.0.2.2")
	payload := []byte("netprobe-payload")

	pkt := BuildICMPEchoV4(src, dst, 0xBEEF, 42, payload)
	// Flip reply bit (type) to simulate what the wire would carry back, and
	// recompute the checksum over the changed header as the replier would.
	pkt[0] = icmpV4EchoReply
	pkt[2], pkt[3] = 0, 0
	binary.BigEndian.PutUint16(pkt[2:4], checksum16(pkt))

	reply := ParseICMPEchoV4(pkt)
	require.NotNil(t, reply)
	require.Equal(t, uint16(0xBEEF), reply.ID)
	require.Equal(t, uint16(42), reply.Seq)
	require.Equal(t, payload, reply.Payload)
}

func TestICMPEchoV4_bitFlipInvalidatesChecksum(t *testing.T) {
	t.Parallel()

	src := net.ParseIP("192.0.2.1")
	dst := net.ParseIP("192.0.2.2")
	pkt := BuildICMPEchoV4(src, dst, 1, 1, []byte("x"))
	pkt[0] = icmpV4EchoReply
	pkt[2], pkt[3] = 0, 0
	binary.BigEndian.PutUint16(pkt[2:4], checksum16(pkt))

	// Sanity: unmodified packet parses.
	require.NotNil(t, ParseICMPEchoV4(pkt))

	corrupt := append([]byte(nil), pkt...)
	corrupt[len(corrupt)-1] ^= 0x01
	require.Nil(t, ParseICMPEchoV4(corrupt))
}

func TestICMPEchoV6_roundTrips(t *testing.T) {
	t.Parallel()

	src := net.ParseIP("2001:db8::1")
	dst := net.ParseIP("2001:db8::2")
	payload := []byte("v6-payload")

	pkt := BuildICMPEchoV6(src, dst, 7, 9, payload)
	pkt[0] = icmpV6EchoReply
	pkt[2], pkt[3] = 0, 0
	binary.BigEndian.PutUint16(pkt[2:4], checksum16(v6PseudoHeader(dst, src, len(pkt), pkt)))

	reply := ParseICMPEchoV6(dst, src, pkt) // reply travels dst->src
	require.NotNil(t, reply)
	require.Equal(t, uint16(7), reply.ID)
	require.Equal(t, uint16(9), reply.Seq)
	require.Equal(t, payload, reply.Payload)
}

func TestICMPEchoV6_bitFlipInvalidatesChecksum(t *testing.T) {
	t.Parallel()

	src := net.ParseIP("2001:db8::1")
	dst := net.ParseIP("2001:db8::2")
	pkt := BuildICMPEchoV6(src, dst, 1, 1, []byte("y"))
	pkt[0] = icmpV6EchoReply
	pkt[2], pkt[3] = 0, 0
	binary.BigEndian.PutUint16(pkt[2:4], checksum16(v6PseudoHeader(dst, src, len(pkt), pkt)))
	require.NotNil(t, ParseICMPEchoV6(dst, src, pkt))

	corrupt := append([]byte(nil), pkt...)
	corrupt[4] ^= 0xFF // corrupt the id field
	require.Nil(t, ParseICMPEchoV6(dst, src, corrupt))
}

func TestParseICMPEchoV4_rejectsWrongType(t *testing.T) {
	t.Parallel()

	src := net.ParseIP("192.0.2.1")
	dst := net.ParseIP("192.0.2.2")
	pkt := BuildICMPEchoV4(src, dst, 1, 1, []byte("z"))
	// Still an echo *request*, not a reply.
	require.Nil(t, ParseICMPEchoV4(pkt))
}

func TestFamilyOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, FamilyV4, FamilyOf(net.ParseIP("10.0.0.1")))
	require.Equal(t, FamilyV6, FamilyOf(net.ParseIP("2001:db8::1")))
}
