package stt

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1.0, -1.0, 2.0, -2.0}
	wav := EncodeWAV(samples, 16000)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(samples)*2)
	}
	if !bytes.Equal(wav[0:4], []byte("RIFF")) || !bytes.Equal(wav[8:12], []byte("WAVE")) {
		t.Fatal("missing RIFF/WAVE markers")
	}

	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if channels := binary.LittleEndian.Uint16(wav[22:24]); channels != 1 {
		t.Errorf("channels = %d, want 1", channels)
	}
	if bits := binary.LittleEndian.Uint16(wav[34:36]); bits != 16 {
		t.Errorf("bits per sample = %d, want 16", bits)
	}
	if dataSize := binary.LittleEndian.Uint32(wav[40:44]); dataSize != uint32(len(samples)*2) {
		t.Errorf("data size = %d, want %d", dataSize, len(samples)*2)
	}

	// Out-of-range samples clamp instead of wrapping.
	data := wav[44:]
	if v := int16(binary.LittleEndian.Uint16(data[10:12])); v != 32767 {
		t.Errorf("clipped positive sample = %d, want 32767", v)
	}
	if v := int16(binary.LittleEndian.Uint16(data[12:14])); v != -32767 {
		t.Errorf("clipped negative sample = %d, want -32767", v)
	}
}

func TestPCM16Bytes(t *testing.T) {
	out := PCM16Bytes([]float32{0, 1.0, -1.0})
	if len(out) != 6 {
		t.Fatalf("len = %d, want 6", len(out))
	}

	if v := int16(binary.LittleEndian.Uint16(out[0:2])); v != 0 {
		t.Errorf("sample 0 = %d, want 0", v)
	}
	if v := int16(binary.LittleEndian.Uint16(out[2:4])); v != 32767 {
		t.Errorf("sample 1 = %d, want 32767", v)
	}
	if v := int16(binary.LittleEndian.Uint16(out[4:6])); v != -32767 {
		t.Errorf("sample 2 = %d, want -32767", v)
	}
}
