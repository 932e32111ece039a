package layered

import (
	"math"
	"testing"
	"unsafe"

	"github.com/cznic/mathutil"
)

// testOptions shrinks the reservation to something a unit test can map
// and touch directly, while keeping both free-list encodings exercised:
// min block 64 B, 20 layers (64 B .. 32 MiB), page-sized layers (>=4 KiB,
// i.e. layer 6 and up) use the packed encoding, smaller ones use the
// unpacked encoding. The per-layer capacity (span/blockSize) shrinks by
// half at every layer, same as the real 1 TiB/35-layer design, so fuzz
// tests deliberately stay well below the top few layers (whose capacity
// is necessarily tiny — the top layer always holds exactly one block,
// span/span == 1) to avoid spurious ErrLayerFull.
func testOptions() Options {
	const minBlock = 64
	const layerCount = 20
	span := uintptr(minBlock) << (layerCount - 1)
	return Options{
		MinBlockSize:    minBlock,
		LayerSpan:       span,
		LayerCount:      layerCount,
		Reservation:     uintptr(layerCount) * span,
		MemcpyThreshold: 8192,
	}
}

func newTestAllocator(t *testing.T) *Allocator {
	t.Helper()
	a, err := New(testOptions())
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func byteView(p unsafe.Pointer, n uintptr) []byte {
	return unsafe.Slice((*byte)(p), int(n))
}

// test1 ports cznic-memory's test1: allocate a quota's worth of randomly
// sized blocks with a deterministic PRNG, fill each with its own random
// bytes, verify the content round-trips, shuffle, then free everything
// and check every layer is back to empty.
func test1(t *testing.T, max int) {
	a := newTestAllocator(t)
	const quota = 256 << 10
	rem := quota
	var ptrs []unsafe.Pointer
	var sizes []int

	rng, err := mathutil.NewFC32(0, math.MaxInt32, true)
	if err != nil {
		t.Fatal(err)
	}
	rng.Seed(42)
	pos := rng.Pos()

	for rem > 0 {
		size := rng.Next()%max + 1
		rem -= size
		p, err := a.Allocate(uintptr(size))
		if err != nil {
			t.Fatal(err)
		}
		b := byteView(p, uintptr(size))
		for i := range b {
			b[i] = byte(rng.Next())
		}
		ptrs = append(ptrs, p)
		sizes = append(sizes, size)
	}

	rng.Seek(pos)
	for i, p := range ptrs {
		size := rng.Next()%max + 1
		if size != sizes[i] {
			t.Fatalf("size mismatch at %d: got %d want %d", i, sizes[i], size)
		}
		b := byteView(p, uintptr(size))
		for j, g := range b {
			if e := byte(rng.Next()); g != e {
				t.Fatalf("%v %p: %#02x %#02x", j, &b[j], g, e)
			}
		}
	}

	for i := range ptrs {
		j := rng.Next() % len(ptrs)
		ptrs[i], ptrs[j] = ptrs[j], ptrs[i]
	}

	for _, p := range ptrs {
		if err := a.Free(p); err != nil {
			t.Fatal(err)
		}
	}

	st := a.Stats()
	for _, l := range st.Layers {
		if l.InUse != 0 {
			t.Fatalf("layer block size %d: InUse = %d, want 0", l.BlockSize, l.InUse)
		}
	}
}

func Test1Small(t *testing.T) { test1(t, 128) }
func Test1Big(t *testing.T)   { test1(t, 65536) }

func TestAllocateFreeOneByte(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Allocate(1)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Free(p); err != nil {
		t.Fatal(err)
	}
	st := a.Stats()
	if st.Layers[0].InUse != 0 {
		t.Fatalf("InUse = %d, want 0", st.Layers[0].InUse)
	}
}

func TestAllocateTooLarge(t *testing.T) {
	a := newTestAllocator(t)
	if _, err := a.Allocate(a.opts.LayerSpan + 1); err != ErrTooLarge {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
}

func TestAllocateMaxBlock(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Allocate(a.opts.LayerSpan)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("got nil pointer")
	}
	if err := a.Free(p); err != nil {
		t.Fatal(err)
	}
}

func TestReallocateNilBehavesAsAllocate(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Reallocate(nil, 100)
	if err != nil {
		t.Fatal(err)
	}
	if p == nil {
		t.Fatal("got nil pointer")
	}
	if err := a.Free(p); err != nil {
		t.Fatal(err)
	}
}

func TestReallocateTooLarge(t *testing.T) {
	a := newTestAllocator(t)
	p, err := a.Allocate(64)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Reallocate(p, a.opts.LayerSpan+1); err != ErrTooLarge {
		t.Fatalf("got %v, want ErrTooLarge", err)
	}
	if err := a.Free(p); err != nil {
		t.Fatal(err)
	}
}
