// Package rawpacket builds and parses the raw IPv4+TCP SYN probes and
// their responses. It leans on gopacket/layers for header serialization
// and checksum arithmetic rather than hand-rolling either.
package rawpacket

import (
	"fmt"
	"math/rand"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// IPHeaderLen and TCPHeaderLen are the fixed (no-options) header sizes this
// scanner assumes throughout. Responses carrying IP options are simply
// undecodable and get discarded.
const (
	IPHeaderLen  = 20
	TCPHeaderLen = 20
	PacketLen    = IPHeaderLen + TCPHeaderLen

	// probeSourcePort is fixed so stray traffic is trivial to reject on
	// the receive side.
	probeSourcePort = 0x1337
	probeWindow     = 0x7110
)

// Standard TCP flag bits, gopacket/layers does not export these as a
// bitmask so they are reconstructed here from its decoded bool fields.
const (
	flagFIN uint8 = 1 << iota
	flagSYN
	flagRST
	flagPSH
	flagACK
	flagURG
	flagECE
	flagCWR
)

// SYNACK and RSTACK are the TCP flag bytes the receiver classifies on.
const (
	SYNACK = flagSYN | flagACK
	RSTACK = flagRST | flagACK
)

// BuildIPv4 writes a 20-byte IPv4 header into buf (which must have
// len(buf) >= IPHeaderLen) addressed to dest, with the total length fixed
// at PacketLen, TTL 255, DF set, and a random identification field. The
// source address is left as 0.0.0.0, which the kernel fills in on an
// IP_HDRINCL socket. The header checksum is computed over the header alone.
func BuildIPv4(buf []byte, dest net.IP) error {
	if len(buf) < IPHeaderLen {
		return fmt.Errorf("rawpacket: ipv4 buffer too small: got %d bytes, need %d", len(buf), IPHeaderLen)
	}

	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TOS:      0,
		Length:   PacketLen,
		Id:       uint16(rand.Intn(1 << 16)),
		Flags:    layers.IPv4DontFragment,
		TTL:      255,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4zero.To4(),
		DstIP:    dest.To4(),
	}

	out := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: false, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(out, opts, ip); err != nil {
		return fmt.Errorf("rawpacket: serializing ipv4 header: %w", err)
	}

	copy(buf[:IPHeaderLen], out.Bytes())
	return nil
}

// BuildTCP writes a 20-byte TCP SYN segment into buf (len(buf) >=
// TCPHeaderLen), destined for destPort, with checksum computed over the
// IPv4 pseudo-header spanning srcIP -> destIP.
func BuildTCP(buf []byte, srcIP, destIP net.IP, destPort uint16) error {
	if len(buf) < TCPHeaderLen {
		return fmt.Errorf("rawpacket: tcp buffer too small: got %d bytes, need %d", len(buf), TCPHeaderLen)
	}

	tcp := &layers.TCP{
		SrcPort:    probeSourcePort,
		DstPort:    layers.TCPPort(destPort),
		Seq:        rand.Uint32(),
		DataOffset: 5,
		SYN:        true,
		Window:     probeWindow,
	}

	// Only used to furnish the pseudo-header for the checksum; it is not
	// itself serialized onto the wire here.
	pseudoIP := &layers.IPv4{
		SrcIP:    srcIP.To4(),
		DstIP:    destIP.To4(),
		Protocol: layers.IPProtocolTCP,
	}
	if err := tcp.SetNetworkLayerForChecksum(pseudoIP); err != nil {
		return fmt.Errorf("rawpacket: setting pseudo-header: %w", err)
	}

	out := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(out, opts, tcp); err != nil {
		return fmt.Errorf("rawpacket: serializing tcp segment: %w", err)
	}

	copy(buf[:TCPHeaderLen], out.Bytes())
	return nil
}

// BuildProbe assembles a full PacketLen-byte SYN probe: the IPv4 header
// followed by the spliced-in TCP segment.
func BuildProbe(buf []byte, srcIP, destIP net.IP, destPort uint16) error {
	if len(buf) < PacketLen {
		return fmt.Errorf("rawpacket: probe buffer too small: got %d bytes, need %d", len(buf), PacketLen)
	}
	if err := BuildIPv4(buf, destIP); err != nil {
		return err
	}
	return BuildTCP(buf[IPHeaderLen:PacketLen], srcIP, destIP, destPort)
}

// ParseTCPFromIP interprets buf as a 20-byte IPv4 header followed by a TCP
// segment, and returns the segment's source port (the probe's original
// destination port) and flag byte. It fails if buf is too short to hold a
// TCP header past the fixed-length IP header.
func ParseTCPFromIP(buf []byte) (srcPort uint16, flags uint8, err error) {
	if len(buf) < IPHeaderLen {
		return 0, 0, fmt.Errorf("rawpacket: datagram too short to skip IP header: %d bytes", len(buf))
	}

	tcp := &layers.TCP{}
	if err := tcp.DecodeFromBytes(buf[IPHeaderLen:], gopacket.NilDecodeFeedback); err != nil {
		return 0, 0, fmt.Errorf("rawpacket: couldn't make tcp packet: %w", err)
	}

	return uint16(tcp.SrcPort), flagByte(tcp), nil
}

// flagByte reconstructs the standard 8-bit TCP flag byte from gopacket's
// decoded boolean fields.
func flagByte(tcp *layers.TCP) uint8 {
	var f uint8
	if tcp.FIN {
		f |= flagFIN
	}
	if tcp.SYN {
		f |= flagSYN
	}
	if tcp.RST {
		f |= flagRST
	}
	if tcp.PSH {
		f |= flagPSH
	}
	if tcp.ACK {
		f |= flagACK
	}
	if tcp.URG {
		f |= flagURG
	}
	if tcp.ECE {
		f |= flagECE
	}
	if tcp.CWR {
		f |= flagCWR
	}
	return f
}
