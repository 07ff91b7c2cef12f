package stream

import "testing"

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteU32(0xDEADBEEF)
	w.WriteFloat32(1.5)
	w.WriteCString("hello")
	w.Pad(16)
	w.WriteGUID([16]byte{1, 2, 3})

	r := NewReader(w.Bytes())

	u, err := r.ReadU32()
	if err != nil || u != 0xDEADBEEF {
		t.Fatalf("ReadU32 = %v, %v", u, err)
	}
	f, err := r.ReadFloat32()
	if err != nil || f != 1.5 {
		t.Fatalf("ReadFloat32 = %v, %v", f, err)
	}
	s, err := r.ReadCString()
	if err != nil || s != "hello" {
		t.Fatalf("ReadCString = %q, %v", s, err)
	}
	r.Align(16)
	if r.Tell()%16 != 0 {
		t.Fatalf("Align did not land on a 16-byte boundary: %d", r.Tell())
	}
	g, err := r.ReadGUID()
	if err != nil || g != [16]byte{1, 2, 3} {
		t.Fatalf("ReadGUID = %v, %v", g, err)
	}
}

func TestWriterPadIsZeroFilled(t *testing.T) {
	w := NewWriter()
	w.WriteU8(0xFF)
	w.Pad(4)
	if w.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", w.Len())
	}
	for i := 1; i < 4; i++ {
		if w.Bytes()[i] != 0 {
			t.Fatalf("Pad byte %d = %#x, want 0", i, w.Bytes()[i])
		}
	}
}

func TestWriterPatchU32At(t *testing.T) {
	w := NewWriter()
	w.WriteU32(0)
	w.WriteCString("later")
	w.PatchU32At(0, 42)

	r := NewReader(w.Bytes())
	v, _ := r.ReadU32()
	if v != 42 {
		t.Fatalf("patched value = %d, want 42", v)
	}
}

func TestFixedStringTruncateAndPad(t *testing.T) {
	w := NewWriter()
	w.WriteFixedString("toolong-name", 4)
	w.WriteFixedString("ab", 4)

	r := NewReader(w.Bytes())
	s1, err := r.ReadFixedString(4)
	if err != nil || s1 != "tool" {
		t.Fatalf("ReadFixedString 1 = %q, %v", s1, err)
	}
	s2, err := r.ReadFixedString(4)
	if err != nil || s2 != "ab" {
		t.Fatalf("ReadFixedString 2 = %q, %v", s2, err)
	}
}
