package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// RawSocketSource is the production PacketSource behind --live. It opens
// two raw IPv4 sockets (one per transport it cares about) and hands back
// parsed 5-tuples to Sniffer. Grounded on
// carverauto-serviceradar/pkg/scan/syn_scanner.go's
// net.ListenPacket("ip4:tcp", ...) plus golang.org/x/net/ipv4.NewRawConn
// pattern for building a raw socket without a packet-capture library.
//
// Deep inspection (HTTP Host, DNS qname) is extracted from the first
// segment of a flow's payload on a best-effort basis; TLS SNI/JA3
// extraction from a live ClientHello is not implemented (a from-scratch
// TLS record parser is out of this package's scope) — those fields stay
// empty for live-captured flows and populate normally in demo mode.
type RawSocketSource struct {
	iface string
	tcp   *ipv4.RawConn
	udp   *ipv4.RawConn

	packets chan rawRead
	done    chan struct{}
}

// NewRawSocketSource opens raw sockets for TCP and UDP capture. iface is
// recorded for logging only: raw IP sockets are not interface-scoped
// without AF_PACKET, so on multi-homed hosts this observes all
// interfaces rather than just the named one. Returns an error (the
// caller should treat this as capture-init failure, spec.md §6.1's exit
// code 2) when the process lacks CAP_NET_RAW.
func NewRawSocketSource(iface string) (*RawSocketSource, error) {
	tcpConn, err := net.ListenPacket("ip4:tcp", "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("open raw tcp socket: %w", err)
	}
	tcpRaw, err := ipv4.NewRawConn(tcpConn)
	if err != nil {
		tcpConn.Close()
		return nil, fmt.Errorf("wrap raw tcp socket: %w", err)
	}

	udpConn, err := net.ListenPacket("ip4:udp", "0.0.0.0")
	if err != nil {
		tcpRaw.Close()
		return nil, fmt.Errorf("open raw udp socket: %w", err)
	}
	udpRaw, err := ipv4.NewRawConn(udpConn)
	if err != nil {
		tcpRaw.Close()
		udpConn.Close()
		return nil, fmt.Errorf("wrap raw udp socket: %w", err)
	}

	src := &RawSocketSource{
		iface:   iface,
		tcp:     tcpRaw,
		udp:     udpRaw,
		packets: make(chan rawRead, 256),
		done:    make(chan struct{}),
	}
	go src.readLoop(src.tcp, model.ProtocolTCP)
	go src.readLoop(src.udp, model.ProtocolUDP)
	return src, nil
}

// Close releases both raw sockets and stops the background readers.
func (s *RawSocketSource) Close() error {
	close(s.done)
	tcpErr := s.tcp.Close()
	udpErr := s.udp.Close()
	if tcpErr != nil {
		return tcpErr
	}
	return udpErr
}

type rawRead struct {
	pkt Packet
	err error
}

// ReadPacket returns the next parsed segment from either raw socket's
// background reader, blocking until one is available or ctx is
// canceled.
func (s *RawSocketSource) ReadPacket(ctx context.Context) (Packet, error) {
	select {
	case r := <-s.packets:
		return r.pkt, r.err
	case <-ctx.Done():
		return Packet{}, ctx.Err()
	case <-s.done:
		return Packet{}, fmt.Errorf("raw socket source closed")
	}
}

// readLoop runs for the lifetime of the source, pushing every parsed
// segment (or a terminal read error) onto the shared packets channel.
func (s *RawSocketSource) readLoop(conn *ipv4.RawConn, proto model.Protocol) {
	buf := make([]byte, 65536)
	for {
		select {
		case <-s.done:
			return
		default:
		}
		conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		header, payload, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case s.packets <- rawRead{err: err}:
			case <-s.done:
			}
			return
		}
		pkt, ok := parseSegment(header, payload, proto)
		if !ok {
			continue
		}
		select {
		case s.packets <- rawRead{pkt: pkt}:
		case <-s.done:
			return
		}
	}
}

// parseSegment builds a Packet from an IPv4 header plus its TCP/UDP
// payload. It returns ok=false for segments too short to carry a valid
// transport header.
func parseSegment(header *ipv4.Header, payload []byte, proto model.Protocol) (Packet, bool) {
	now := time.Now()
	switch proto {
	case model.ProtocolTCP:
		if len(payload) < 20 {
			return Packet{}, false
		}
		srcPort := binary.BigEndian.Uint16(payload[0:2])
		dstPort := binary.BigEndian.Uint16(payload[2:4])
		dataOffset := int(payload[12]>>4) * 4
		if dataOffset < 20 || dataOffset > len(payload) {
			dataOffset = 20
		}
		body := payload[dataOffset:]
		pkt := Packet{
			Timestamp:  now,
			SourceIP:   header.Src.String(),
			DestIP:     header.Dst.String(),
			SourcePort: int(srcPort),
			DestPort:   int(dstPort),
			Protocol:   model.ProtocolTCP,
			PayloadLen: header.TotalLen,
			Direction:  DirOutbound,
		}
		if host, ok := parseHTTPHost(body); ok {
			pkt.HTTPHost = host
		}
		return pkt, true
	case model.ProtocolUDP:
		if len(payload) < 8 {
			return Packet{}, false
		}
		srcPort := binary.BigEndian.Uint16(payload[0:2])
		dstPort := binary.BigEndian.Uint16(payload[2:4])
		body := payload[8:]
		pkt := Packet{
			Timestamp:  now,
			SourceIP:   header.Src.String(),
			DestIP:     header.Dst.String(),
			SourcePort: int(srcPort),
			DestPort:   int(dstPort),
			Protocol:   model.ProtocolUDP,
			PayloadLen: header.TotalLen,
			Direction:  DirOutbound,
		}
		if srcPort == 53 || dstPort == 53 {
			if qname, ok := parseDNSQuestion(body); ok {
				pkt.DNSQname = qname
			}
		}
		return pkt, true
	}
	return Packet{}, false
}

// parseHTTPHost looks for a leading "GET /... HTTP/1.1\r\nHost: x\r\n"
// style request and returns the Host header value, if present in this
// segment.
func parseHTTPHost(body []byte) (string, bool) {
	text := string(body)
	if !strings.HasPrefix(text, "GET ") && !strings.HasPrefix(text, "POST ") &&
		!strings.HasPrefix(text, "PUT ") && !strings.HasPrefix(text, "HEAD ") {
		return "", false
	}
	for _, line := range strings.Split(text, "\r\n") {
		if strings.HasPrefix(strings.ToLower(line), "host:") {
			return strings.TrimSpace(line[len("host:"):]), true
		}
	}
	return "", false
}

// parseDNSQuestion decodes the QNAME of the first question in a raw DNS
// message body (label-length-prefixed, null-terminated).
func parseDNSQuestion(body []byte) (string, bool) {
	if len(body) < 13 {
		return "", false
	}
	var labels []string
	i := 12
	for i < len(body) {
		n := int(body[i])
		if n == 0 {
			break
		}
		i++
		if i+n > len(body) {
			return "", false
		}
		labels = append(labels, string(body[i:i+n]))
		i += n
	}
	if len(labels) == 0 {
		return "", false
	}
	return strings.Join(labels, "."), true
}
