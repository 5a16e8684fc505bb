package midi

import (
	"bytes"
	"testing"
)

func TestAppendVLQ(t *testing.T) {
	cases := []struct {
		value uint32
		want  []byte
	}{
		{0, []byte{0x00}},
		{0x40, []byte{0x40}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x81, 0x00}},
		{0x2000, []byte{0xC0, 0x00}},
		{0x3FFF, []byte{0xFF, 0x7F}},
		{0x4000, []byte{0x81, 0x80, 0x00}},
		{0x0FFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}
	for _, tc := range cases {
		if got := appendVLQ(nil, tc.value); !bytes.Equal(got, tc.want) {
			t.Fatalf("appendVLQ(%#x) = % x, want % x", tc.value, got, tc.want)
		}
	}
}

func TestEncodeRawHeader(t *testing.T) {
	data := encodeRaw([]Message{{Kind: KindEndOfTrack}}, 480)
	want := []byte{
		'M', 'T', 'h', 'd', 0, 0, 0, 6, 0, 0, 0, 1, 0x01, 0xE0,
		'M', 'T', 'r', 'k', 0, 0, 0, 4, 0x00, 0xFF, 0x2F, 0x00,
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("unexpected raw bytes % x", data)
	}
}
