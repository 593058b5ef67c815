package consensus

import (
	"errors"
	"testing"
)

func TestCollection_GrowsPastInitialCapacity(t *testing.T) {
	c := NewCollection(10)

	for i := 0; i < 20; i++ {
		c.Add(testMetric(testID(byte(i+1)), uint32(i+1)*1000, 50_000))
	}

	if c.Len() != 20 {
		t.Fatalf("len = %d, want 20", c.Len())
	}
	// 插入顺序保持
	for i := 0; i < 20; i++ {
		m, err := c.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		if m.ParticipantID != testID(byte(i+1)) {
			t.Errorf("At(%d) = %s, want %s", i, m.ParticipantID.ShortString(), testID(byte(i+1)).ShortString())
		}
	}
}

func TestCollection_AtOutOfRange(t *testing.T) {
	c := NewCollection(4)
	c.Add(testMetric(testID(1), 1000, 1000))

	for _, index := range []int{-1, 1, 100} {
		if _, err := c.At(index); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("At(%d) err = %v, want ErrIndexOutOfRange", index, err)
		}
	}
}

func TestCollection_ResetKeepsCapacity(t *testing.T) {
	c := NewCollection(4)
	for i := 0; i < 10; i++ {
		c.Add(testMetric(testID(byte(i+1)), 1000, 1000))
	}
	grown := c.Cap()

	c.Reset()
	if c.Len() != 0 {
		t.Errorf("len after reset = %d, want 0", c.Len())
	}
	if c.Cap() != grown {
		t.Errorf("cap after reset = %d, want %d", c.Cap(), grown)
	}
}

func TestCollection_EntriesReturnsCopy(t *testing.T) {
	c := NewCollection(4)
	c.Add(testMetric(testID(1), 1000, 1000))

	entries := c.Entries()
	entries[0].ParticipantID = testID(99)

	m, _ := c.At(0)
	if m.ParticipantID != testID(1) {
		t.Error("mutating Entries() result leaked into the collection")
	}
}

func TestNewCollection_NonPositiveCapacity(t *testing.T) {
	c := NewCollection(0)
	if c.Cap() != initialMetricsCapacity {
		t.Errorf("cap = %d, want %d", c.Cap(), initialMetricsCapacity)
	}
}
