package converter

import "unsafe"

// Layout describes a memory region the caller must provide: Size bytes
// whose base address is a multiple of Alignment.
type Layout struct {
	Alignment int
	Size      int
}

// AlignedBytes allocates a byte slice satisfying the layout. The Go
// allocator does not promise alignment beyond 8 bytes for byte slices, so
// this over-allocates and reslices to the first aligned address. Callers
// with their own aligned arenas can ignore this helper and hand Construct
// any region that satisfies the layout.
func AlignedBytes(l Layout) []byte {
	if l.Size == 0 {
		return nil
	}
	align := l.Alignment
	if align < 1 {
		align = 1
	}
	buf := make([]byte, l.Size+align)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&buf[0])) % uintptr(align)); rem != 0 {
		off = align - rem
	}
	return buf[off : off+l.Size]
}
