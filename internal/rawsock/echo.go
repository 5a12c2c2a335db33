package rawsock

import (
	"encoding/binary"
	"net"
)

// ICMP type/code constants (§4.2).
const (
	icmpV4EchoRequest = 8
	icmpV4EchoReply   = 0
	icmpV6EchoRequest = 128
	icmpV6EchoReply   = 129

	icmpv6NextHeader = 58 // used in the IPv6 pseudo-header checksum
)

// EchoReply is what ParseICMPEchoV4/V6 return on a valid reply.
type EchoReply struct {
	ID      uint16
	Seq     uint16
	Payload []byte
}

// checksum16 computes the Internet checksum (RFC 1071): 16-bit one's
// complement sum, folded, then complemented. Shared by v4 header/ICMP and
// the v6 pseudo-header checksum, matching uping's onesComplement16.
func checksum16(b []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i:]))
	}
	if len(b)%2 == 1 {
		sum += uint32(b[len(b)-1]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// BuildICMPEchoV4 builds an ICMPv4 Echo Request (type 8, code 0) with the
// Internet checksum set over header+payload (§4.2). src/dst are accepted
// for symmetry with the v6 builder (the pseudo-header is v6-only) and are
// otherwise unused.
func BuildICMPEchoV4(_, _ net.IP, id, seq uint16, payload []byte) []byte {
	pkt := make([]byte, 8+len(payload))
	pkt[0] = icmpV4EchoRequest
	pkt[1] = 0
	binary.BigEndian.PutUint16(pkt[4:6], id)
	binary.BigEndian.PutUint16(pkt[6:8], seq)
	copy(pkt[8:], payload)
	binary.BigEndian.PutUint16(pkt[2:4], checksum16(pkt))
	return pkt
}

// ParseICMPEchoV4 returns the parsed reply iff b is a valid (type=0, code=0)
// ICMPv4 echo reply with a correct checksum.
func ParseICMPEchoV4(b []byte) *EchoReply {
	if len(b) < 8 {
		return nil
	}
	if b[0] != icmpV4EchoReply || b[1] != 0 {
		return nil
	}
	if checksum16(b) != 0 {
		return nil
	}
	return &EchoReply{
		ID:      binary.BigEndian.Uint16(b[4:6]),
		Seq:     binary.BigEndian.Uint16(b[6:8]),
		Payload: append([]byte(nil), b[8:]...),
	}
}

// BuildICMPEchoV6 builds an ICMPv6 Echo Request (type 128, code 0). Unlike
// v4, the ICMPv6 checksum covers a pseudo-header of (src, dst, upper-layer
// length, next-header=58) per RFC 4443/2460, so src and dst are required.
func BuildICMPEchoV6(src, dst net.IP, id, seq uint16, payload []byte) []byte {
	pkt := make([]byte, 8+len(payload))
	pkt[0] = icmpV6EchoRequest
	pkt[1] = 0
	binary.BigEndian.PutUint16(pkt[4:6], id)
	binary.BigEndian.PutUint16(pkt[6:8], seq)
	copy(pkt[8:], payload)
	binary.BigEndian.PutUint16(pkt[2:4], checksum16(v6PseudoHeader(src, dst, len(pkt), pkt)))
	return pkt
}

// ParseICMPEchoV6 returns the parsed reply iff b is a valid (type=129,
// code=0) ICMPv6 echo reply whose pseudo-header checksum validates.
func ParseICMPEchoV6(src, dst net.IP, b []byte) *EchoReply {
	if len(b) < 8 {
		return nil
	}
	if b[0] != icmpV6EchoReply || b[1] != 0 {
		return nil
	}
	if checksum16(v6PseudoHeader(src, dst, len(b), b)) != 0 {
		return nil
	}
	return &EchoReply{
		ID:      binary.BigEndian.Uint16(b[4:6]),
		Seq:     binary.BigEndian.Uint16(b[6:8]),
		Payload: append([]byte(nil), b[8:]...),
	}
}

// ParseICMPEchoV6Trusted extracts an echo reply without recomputing the
// pseudo-header checksum. Use only when the kernel already validated it (a
// v6 Conn opened via New sets IPV6_CHECKSUM, so every datagram RecvFrom
// returns already passed kernel verification).
func ParseICMPEchoV6Trusted(b []byte) *EchoReply {
	if len(b) < 8 {
		return nil
	}
	if b[0] != icmpV6EchoReply || b[1] != 0 {
		return nil
	}
	return &EchoReply{
		ID:      binary.BigEndian.Uint16(b[4:6]),
		Seq:     binary.BigEndian.Uint16(b[6:8]),
		Payload: append([]byte(nil), b[8:]...),
	}
}

// v6PseudoHeader builds the RFC 2460 §8.1 pseudo-header followed by the
// ICMPv6 message, ready to feed into checksum16.
func v6PseudoHeader(src, dst net.IP, upperLen int, msg []byte) []byte {
	buf := make([]byte, 40+len(msg))
	copy(buf[0:16], src.To16())
	copy(buf[16:32], dst.To16())
	binary.BigEndian.PutUint32(buf[32:36], uint32(upperLen))
	buf[39] = icmpv6NextHeader
	copy(buf[40:], msg)
	return buf
}
