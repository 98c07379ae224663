package source

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/shadowhunter/internal/model"
)

type fakeSource struct {
	packets []Packet
	i       int
}

func (f *fakeSource) ReadPacket(ctx context.Context) (Packet, error) {
	if f.i >= len(f.packets) {
		return Packet{}, io.EOF
	}
	p := f.packets[f.i]
	f.i++
	return p, nil
}

func TestSnifferAssemblesBidirectionalFlow(t *testing.T) {
	now := time.Now()
	src := &fakeSource{packets: []Packet{
		{Timestamp: now, SourceIP: "10.0.0.5", DestIP: "104.18.32.7", SourcePort: 55000, DestPort: 443,
			Protocol: model.ProtocolHTTPS, PayloadLen: 500, Direction: DirOutbound, TLSSNI: "api.openai.com"},
		{Timestamp: now.Add(10 * time.Millisecond), SourceIP: "10.0.0.5", DestIP: "104.18.32.7", SourcePort: 55000, DestPort: 443,
			Protocol: model.ProtocolHTTPS, PayloadLen: 1500, Direction: DirInbound},
	}}
	sniffer := NewSniffer(src, 50*time.Millisecond, nil)

	var got []model.FlowEvent
	err := sniffer.Run(context.Background(), func(e model.FlowEvent) { got = append(got, e) })
	require.ErrorIs(t, err, io.EOF)
	require.Len(t, got, 1)
	assert.Equal(t, int64(500), got[0].BytesSent)
	assert.Equal(t, int64(1500), got[0].BytesReceived)
	assert.Equal(t, "api.openai.com", got[0].Meta("sni"))
}

func TestSnifferDropsMulticastAndLoopback(t *testing.T) {
	now := time.Now()
	src := &fakeSource{packets: []Packet{
		{Timestamp: now, SourceIP: "10.0.0.5", DestIP: "224.0.0.1", SourcePort: 1, DestPort: 2, PayloadLen: 10},
		{Timestamp: now, SourceIP: "10.0.0.5", DestIP: "127.0.0.1", SourcePort: 1, DestPort: 2, PayloadLen: 10},
		{Timestamp: now, SourceIP: "10.0.0.5", DestIP: "239.255.255.250", SourcePort: 1, DestPort: 2, PayloadLen: 10},
	}}
	sniffer := NewSniffer(src, 20*time.Millisecond, nil)

	var got []model.FlowEvent
	err := sniffer.Run(context.Background(), func(e model.FlowEvent) { got = append(got, e) })
	require.ErrorIs(t, err, io.EOF)
	assert.Empty(t, got)
}

func TestJA3HashIsStableAndOrderSensitive(t *testing.T) {
	h1 := BuildJA3(771, []int{4865, 4866}, []int{0, 23}, []int{29, 23}, []int{0})
	h2 := BuildJA3(771, []int{4865, 4866}, []int{0, 23}, []int{29, 23}, []int{0})
	h3 := BuildJA3(771, []int{4866, 4865}, []int{0, 23}, []int{29, 23}, []int{0})
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 32)
}
