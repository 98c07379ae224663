package source

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sgerhart/shadowhunter/internal/model"
)

// FlowWindow is spec.md's "rolling 2-second flow window" default.
const FlowWindow = 2 * time.Second

// Packet is the minimal per-packet observation the sniffer needs from
// whatever captures it. Packet capture internals (interface taps,
// BPF filters, libpcap/AF_PACKET plumbing) are out of scope per
// spec.md §1 — only this contract and the FlowEvent it produces are
// specified. A production deployment supplies a PacketSource backed by
// a real capture library; tests supply a fake one.
type Packet struct {
	Timestamp   time.Time
	SourceIP    string
	DestIP      string
	SourcePort  int
	DestPort    int
	Protocol    model.Protocol
	PayloadLen  int
	Direction   Direction // which side of the 5-tuple sent this packet

	// Deep-inspection fields, populated only when the packet carries
	// them (e.g. a TLS ClientHello, an HTTP request line, a DNS query).
	HTTPHost  string
	TLSSNI    string
	JA3Raw    string // pre-hash "ciphers,extensions,curves,curve_formats" string
	DNSQname  string
	UserAgent string
}

// Direction distinguishes the two legs of a bidirectional flow.
type Direction int

const (
	DirOutbound Direction = iota
	DirInbound
)

// PacketSource is any live or replayed packet feed. A real
// implementation wraps a capture library; see the package doc.
type PacketSource interface {
	// ReadPacket blocks until the next packet is available, ctx is
	// canceled, or the source is exhausted (io.EOF).
	ReadPacket(ctx context.Context) (Packet, error)
}

// Sniffer assembles Packets into FlowEvents over a rolling window.
type Sniffer struct {
	src    PacketSource
	window time.Duration
	logger *slog.Logger
}

// NewSniffer builds a live adapter over src. window defaults to
// FlowWindow when zero.
func NewSniffer(src PacketSource, window time.Duration, logger *slog.Logger) *Sniffer {
	if window <= 0 {
		window = FlowWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sniffer{src: src, window: window, logger: logger.With("component", "sniffer")}
}

type flowKey struct {
	srcIP, dstIP     string
	srcPort, dstPort int
	protocol         model.Protocol
}

type flowAccumulator struct {
	key           flowKey
	firstSeen     time.Time
	lastSeen      time.Time
	bytesSent     int64
	bytesReceived int64
	httpHost      string
	tlsSNI        string
	ja3Raw        string
	dnsQname      string
	userAgent     string
}

// Run reads packets from the source, assembles rolling flow windows,
// and calls emit once per completed flow. It returns when ctx is
// canceled or the source returns a non-nil, non-context error.
func (s *Sniffer) Run(ctx context.Context, emit Emit) error {
	flows := make(map[flowKey]*flowAccumulator)
	ticker := time.NewTicker(s.window)
	defer ticker.Stop()

	flush := func(now time.Time, force bool) {
		for k, acc := range flows {
			if force || now.Sub(acc.firstSeen) >= s.window {
				emit(acc.toFlowEvent())
				delete(flows, k)
			}
		}
	}

	type readResult struct {
		pkt Packet
		err error
	}
	packets := make(chan readResult)
	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()
	go func() {
		for {
			pkt, err := s.src.ReadPacket(readerCtx)
			select {
			case packets <- readResult{pkt, err}:
			case <-readerCtx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			flush(time.Now(), true)
			return ctx.Err()
		case now := <-ticker.C:
			flush(now, false)
		case r := <-packets:
			if r.err != nil {
				flush(time.Now(), true)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return r.err
			}
			s.ingest(flows, r.pkt)
		}
	}
}

func (s *Sniffer) ingest(flows map[flowKey]*flowAccumulator, pkt Packet) {
	dstIP := net.ParseIP(pkt.DestIP)
	if dropAtSource(dstIP) {
		return
	}
	if net.ParseIP(pkt.SourceIP) == nil || dstIP == nil {
		return
	}

	key := flowKey{
		srcIP: pkt.SourceIP, dstIP: pkt.DestIP,
		srcPort: pkt.SourcePort, dstPort: pkt.DestPort,
		protocol: pkt.Protocol,
	}
	acc, ok := flows[key]
	if !ok {
		acc = &flowAccumulator{key: key, firstSeen: pkt.Timestamp}
		flows[key] = acc
	}
	acc.lastSeen = pkt.Timestamp
	switch pkt.Direction {
	case DirInbound:
		acc.bytesReceived += int64(pkt.PayloadLen)
	default:
		acc.bytesSent += int64(pkt.PayloadLen)
	}
	if pkt.HTTPHost != "" {
		acc.httpHost = pkt.HTTPHost
	}
	if pkt.TLSSNI != "" {
		acc.tlsSNI = pkt.TLSSNI
	}
	if pkt.JA3Raw != "" {
		acc.ja3Raw = pkt.JA3Raw
	}
	if pkt.DNSQname != "" {
		acc.dnsQname = pkt.DNSQname
	}
	if pkt.UserAgent != "" {
		acc.userAgent = pkt.UserAgent
	}
}

func (a *flowAccumulator) toFlowEvent() model.FlowEvent {
	meta := map[string]string{}
	if a.httpHost != "" {
		meta["host"] = a.httpHost
	}
	if a.tlsSNI != "" {
		meta["sni"] = a.tlsSNI
	}
	if a.dnsQname != "" {
		meta["dns_query"] = a.dnsQname
	}
	if a.userAgent != "" {
		meta["user_agent"] = a.userAgent
	}
	ja3 := ""
	if a.ja3Raw != "" {
		ja3 = JA3Hash(a.ja3Raw)
	}
	return model.FlowEvent{
		Timestamp:       a.lastSeen,
		SourceIP:        a.key.srcIP,
		DestinationIP:   a.key.dstIP,
		SourcePort:      a.key.srcPort,
		DestinationPort: a.key.dstPort,
		Protocol:        a.key.protocol,
		BytesSent:       a.bytesSent,
		BytesReceived:   a.bytesReceived,
		JA3Hash:         ja3,
		Metadata:        meta,
	}
}

// JA3Hash computes the MD5 hex digest of a JA3 field string in the
// recognized order: SSLVersion,Cipher,Extension,EllipticCurve,
// EllipticCurvePointFormat (spec.md §4.3). raw is expected to already
// be assembled in that order and comma/dash-joined by the caller
// extracting the ClientHello; this function only hashes it.
func JA3Hash(raw string) string {
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// BuildJA3 assembles the canonical JA3 field string from its five
// components, each a slice of decimal values in wire order, and returns
// its MD5 digest. Provided for capture implementations that hand this
// package individually-parsed ClientHello fields rather than a
// pre-joined string.
func BuildJA3(version int, ciphers, extensions, curves, curveFormats []int) string {
	join := func(vals []int) string {
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = strconv.Itoa(v)
		}
		return strings.Join(parts, "-")
	}
	raw := strconv.Itoa(version) + "," + join(ciphers) + "," + join(extensions) + "," + join(curves) + "," + join(curveFormats)
	return JA3Hash(raw)
}
