package types

import "testing"

func TestPointerInterning(t *testing.T) {
	r := New()
	intType := r.Builtin(KindInt)
	p1 := r.Pointer(intType)
	p2 := r.Pointer(intType)
	if p1 != p2 {
		t.Fatalf("pointer-to-int should be interned to a single TypeID, got %d and %d", p1, p2)
	}
	if r.At(p1).Kind != KindPointer {
		t.Fatalf("expected KindPointer, got %v", r.At(p1).Kind)
	}
}

func TestUsualArithmeticConversionFloatWins(t *testing.T) {
	r := New()
	var intID, doubleID TypeID
	for id := TypeID(1); int(id) < len(r.types); id++ {
		switch r.types[id].Kind {
		case KindInt:
			intID = id
		case KindDouble:
			doubleID = id
		}
	}
	common := r.UsualArithmeticConversion(intID, doubleID)
	if common != doubleID {
		t.Fatalf("expected double to win over int, got kind %v", r.At(common).Kind)
	}
}

func TestArrayBoundAndSize(t *testing.T) {
	r := New()
	var intID TypeID
	for id := TypeID(1); int(id) < len(r.types); id++ {
		if r.types[id].Kind == KindInt {
			intID = id
		}
	}
	arr := r.Array(intID, 10)
	if r.At(arr).Size != 40 {
		t.Fatalf("expected array of 10 ints to be 40 bytes, got %d", r.At(arr).Size)
	}
}
