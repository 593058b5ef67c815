package consensus

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/dep2p/go-vchat/pkg/types"
)

func TestWireMetrics_RoundTrip(t *testing.T) {
	in := types.ParticipantMetrics{
		ParticipantID:   testID(7),
		NATTier:         types.NATTierUPnP,
		UploadKbps:      123_456,
		RTTNanos:        7_890_123,
		STUNSuccessPct:  87,
		PublicAddress:   "relay.example.com",
		PublicPort:      51820,
		ConnectionType:  types.ConnectionUPnP,
		MeasuredAtNanos: 1_700_000_123_456_789_000,
		WindowNanos:     30_000_000_000,
	}

	data, err := MarshalWireMetrics(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(data) != WireMetricsSize {
		t.Fatalf("encoded size = %d, want %d", len(data), WireMetricsSize)
	}

	out, err := UnmarshalWireMetrics(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestWireMetrics_MaxLengthAddress(t *testing.T) {
	in := testMetric(testID(1), 1000, 1000)
	in.PublicAddress = strings.Repeat("a", types.MaxPublicAddressLen)

	data, err := MarshalWireMetrics(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := UnmarshalWireMetrics(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.PublicAddress != in.PublicAddress {
		t.Errorf("address = %q, want %q", out.PublicAddress, in.PublicAddress)
	}
}

func TestWireMetrics_AddressTooLong(t *testing.T) {
	in := testMetric(testID(1), 1000, 1000)
	in.PublicAddress = strings.Repeat("a", types.MaxPublicAddressLen+1)

	if _, err := MarshalWireMetrics(in); !errors.Is(err, types.ErrPublicAddressTooLong) {
		t.Errorf("err = %v, want ErrPublicAddressTooLong", err)
	}
}

func TestWireMetrics_InvalidTierRejectedOnMarshal(t *testing.T) {
	in := testMetric(testID(1), 1000, 1000)
	in.NATTier = 5

	if _, err := MarshalWireMetrics(in); !errors.Is(err, types.ErrNATTierOutOfRange) {
		t.Errorf("err = %v, want ErrNATTierOutOfRange", err)
	}
}

func TestUnmarshalWireMetrics_TooShort(t *testing.T) {
	_, err := UnmarshalWireMetrics(make([]byte, WireMetricsSize-1))
	if !errors.Is(err, ErrPacketTooShort) {
		t.Errorf("err = %v, want ErrPacketTooShort", err)
	}
}

func TestUnmarshalWireMetrics_SingleByteFieldsUnaltered(t *testing.T) {
	// 解码不做语义校验：越界的单字节字段原样透传，由上层 Validate 过滤
	raw := make([]byte, WireMetricsSize)
	raw[16] = 200 // nat_tier
	raw[25] = 250 // stun_probe_success_pct

	out, err := UnmarshalWireMetrics(raw)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.NATTier != 200 {
		t.Errorf("nat tier = %d, want 200", out.NATTier)
	}
	if out.STUNSuccessPct != 250 {
		t.Errorf("stun pct = %d, want 250", out.STUNSuccessPct)
	}
	if out.Validate() == nil {
		t.Error("expected Validate to reject out-of-range fields")
	}
}

func TestWireMetrics_BigEndianLayout(t *testing.T) {
	in := testMetric(testID(1), 0x01020304, 0x0A0B0C0D)
	in.PublicPort = 0x1122

	data, err := MarshalWireMetrics(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if !bytes.Equal(data[17:21], []byte{0x0A, 0x0B, 0x0C, 0x0D}) {
		t.Errorf("upload bytes = %x", data[17:21])
	}
	if !bytes.Equal(data[21:25], []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("rtt bytes = %x", data[21:25])
	}
	if !bytes.Equal(data[90:92], []byte{0x11, 0x22}) {
		t.Errorf("port bytes = %x", data[90:92])
	}
}
