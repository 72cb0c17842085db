// Package xtoa converts signed/unsigned integers and floating point
// numbers into compile-time string representations, used by constant
// folding and debug-info generation rather than the emitted machine
// code path. Ported near-verbatim from the teacher's
// hhramberg-go-vslc/src/backend/xtoa/xtoa.go, adding an unsigned 64-bit
// variant the original (VSL has no unsigned type) never needed.
package xtoa

// ItoA converts a signed 64-bit integer to its decimal string form.
func ItoA(i int64) string {
	res := make([]byte, 32) // 2^63-1 is 19 digits plus an optional sign.
	var sign bool

	if i < 0 {
		sign = true
		i = -i
	}

	i1 := len(res) - 1
	for ; i1 >= 0 && i != 0; i1-- {
		res[i1] = byte((i % 10) + '0')
		i /= 10
	}
	if i1 == len(res)-1 {
		res[i1] = '0'
		i1--
	}
	if sign {
		res[i1] = '-'
		i1--
	}
	return string(res[i1+1:])
}

// UtoA converts an unsigned 64-bit integer to its decimal string form.
func UtoA(u uint64) string {
	res := make([]byte, 32)
	i1 := len(res) - 1
	for ; i1 >= 0 && u != 0; i1-- {
		res[i1] = byte((u % 10) + '0')
		u /= 10
	}
	if i1 == len(res)-1 {
		res[i1] = '0'
		i1--
	}
	return string(res[i1+1:])
}

// FtoA converts a float to its decimal string form with 4-decimal
// precision, matching the teacher's fixed-precision formatting.
func FtoA(f float64) string {
	res := make([]byte, 48)
	i1 := 0

	if f < 0 {
		f = -f
		res[0] = '-'
		i1++
	}

	ip := int64(f)
	fp := f - float64(ip)

	tmp := ItoA(ip)
	copy(res[i1:], tmp)
	i1 += len(tmp)

	res[i1] = '.'
	i1++

	fp *= 10000
	tmp = ItoA(int64(fp))
	copy(res[i1:], tmp)
	i1 += len(tmp)

	return string(res[:i1])
}
