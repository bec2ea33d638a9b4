package ggml

import "math"

// Float16ToFloat32 converts an IEEE 754 half precision bit pattern to float32.
func Float16ToFloat32(h uint16) float32 {
	sign := (h >> 15) & 0x1
	exp := (h >> 10) & 0x1F
	mant := h & 0x3FF

	var result uint32

	switch exp {
	case 0:
		if mant == 0 {
			result = uint32(sign) << 31
		} else {
			// Subnormal: normalize the mantissa.
			e := int32(1)
			for (mant & 0x400) == 0 {
				mant <<= 1
				e--
			}
			mant &= 0x3FF
			result = (uint32(sign) << 31) | (uint32(e+127-15) << 23) | (uint32(mant) << 13)
		}
	case 0x1F:
		result = (uint32(sign) << 31) | 0x7F800000 | (uint32(mant) << 13)
	default:
		result = (uint32(sign) << 31) | (uint32(exp+127-15) << 23) | (uint32(mant) << 13)
	}

	return math.Float32frombits(result)
}

// Float32ToFloat16 converts a float32 to an IEEE 754 half precision bit
// pattern, rounding to nearest with ties to even.
func Float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits >> 23) & 0xFF)
	frac := bits & 0x007FFFFF

	if exp == 0xFF {
		if frac == 0 {
			return sign | 0x7C00
		}
		// Quiet NaN with a non-zero payload.
		payload := uint16(frac >> 13)
		return sign | 0x7C00 | 0x0200 | (payload & 0x03FF)
	}

	// float32 subnormals underflow to signed zero.
	if exp == 0 {
		return sign
	}

	e16 := exp - 127 + 15
	if e16 >= 0x1F {
		return sign | 0x7C00
	}

	if e16 <= 0 {
		if e16 < -10 {
			return sign
		}
		mant := frac | 0x00800000
		shift := uint32(14 - e16)
		m := mant >> shift
		remainder := mant & ((uint32(1) << shift) - 1)
		half := uint32(1) << (shift - 1)
		if remainder > half || (remainder == half && (m&1) == 1) {
			m++
		}
		return sign | uint16(m)
	}

	m := frac >> 13
	remainder := frac & 0x1FFF
	if remainder > 0x1000 || (remainder == 0x1000 && (m&1) == 1) {
		m++
		if m == 0x0400 {
			m = 0
			e16++
			if e16 >= 0x1F {
				return sign | 0x7C00
			}
		}
	}

	return sign | uint16(e16)<<10 | uint16(m)
}
