package consensus

import (
	"errors"
	"testing"

	"github.com/dep2p/go-vchat/pkg/types"
)

func TestCollectionStartPacket_RoundTrip(t *testing.T) {
	in := &CollectionStartPacket{
		RoundID:       42,
		DeadlineNanos: 1_700_000_030_000_000_000,
	}

	data, err := in.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pkt, err := DecodePacket(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, ok := pkt.(*CollectionStartPacket)
	if !ok {
		t.Fatalf("decoded type = %T", pkt)
	}
	if out.RoundID != in.RoundID || out.DeadlineNanos != in.DeadlineNanos {
		t.Errorf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestStatsUpdatePacket_RoundTrip(t *testing.T) {
	in := &StatsUpdatePacket{
		SenderID: testID(2),
		Metrics: []types.ParticipantMetrics{
			testMetric(testID(2), 10_000, 80_000),
			testMetric(testID(3), 50_000, 20_000),
		},
	}

	data, err := in.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if want := statsUpdateHeaderSize + 2*WireMetricsSize; len(data) != want {
		t.Fatalf("encoded size = %d, want %d", len(data), want)
	}

	pkt, err := DecodePacket(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := pkt.(*StatsUpdatePacket)
	if out.SenderID != in.SenderID {
		t.Errorf("sender = %s, want %s", out.SenderID.ShortString(), in.SenderID.ShortString())
	}
	if len(out.Metrics) != 2 {
		t.Fatalf("metrics count = %d, want 2", len(out.Metrics))
	}
	for i := range in.Metrics {
		if out.Metrics[i] != in.Metrics[i] {
			t.Errorf("metric %d mismatch", i)
		}
	}
}

func TestStatsUpdatePacket_EmptySender(t *testing.T) {
	in := &StatsUpdatePacket{}
	if _, err := in.Encode(); !errors.Is(err, ErrEmptyID) {
		t.Errorf("err = %v, want ErrEmptyID", err)
	}
}

func TestElectionResultPacket_RoundTrip(t *testing.T) {
	in := &ElectionResultPacket{HostID: testID(1), BackupID: testID(2)}

	data, err := in.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	pkt, err := DecodePacket(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out := pkt.(*ElectionResultPacket)
	if out.HostID != in.HostID || out.BackupID != in.BackupID {
		t.Errorf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestDecodePacket_Errors(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrPacketTooShort},
		{"unknown type", []byte{0xFF, 0, 0}, ErrUnknownPacketType},
		{"collection start short", []byte{byte(PacketTypeCollectionStart), 1, 2}, ErrPacketTooShort},
		{"collection start trailing", make([]byte, collectionStartSize+1), ErrTrailingBytes},
		{"election result short", []byte{byte(PacketTypeElectionResult), 1}, ErrPacketTooShort},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := tc.data
			if tc.name == "collection start trailing" {
				data[0] = byte(PacketTypeCollectionStart)
			}
			if _, err := DecodePacket(data); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDecodePacket_StatsUpdateCountMismatch(t *testing.T) {
	in := &StatsUpdatePacket{
		SenderID: testID(2),
		Metrics:  []types.ParticipantMetrics{testMetric(testID(2), 1000, 1000)},
	}
	data, err := in.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	// 声称两条记录但只携带一条
	data[17] = 2
	if _, err := DecodePacket(data); !errors.Is(err, ErrPacketTooShort) {
		t.Errorf("err = %v, want ErrPacketTooShort", err)
	}

	// 声称零条记录却带着负载
	data[17] = 0
	if _, err := DecodePacket(data); !errors.Is(err, ErrTrailingBytes) {
		t.Errorf("err = %v, want ErrTrailingBytes", err)
	}
}
