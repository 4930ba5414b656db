package jpegenc

// huffTable is a JPEG Huffman table built from observed symbol frequencies.
type huffTable struct {
	bits [17]int // bits[l] = number of codes of length l
	vals []byte  // symbols ordered by code length, then value
	code [256]uint16
	size [256]uint8
}

const maxCodeLen = 32

// buildTable derives an optimal length-limited (16 bit) table from freq,
// following the procedure of ITU T.81 Annex K.2 as implemented by the IJG
// library. freq is modified.
func buildTable(freq *[257]int) *huffTable {
	var (
		codesize [257]int
		others   [257]int
	)
	for i := range others {
		others[i] = -1
	}
	// Reserve one code point so that no real symbol gets the all-ones code.
	freq[256] = 1

	for {
		c1, c2 := -1, -1
		v := int(^uint(0) >> 1)
		for i := 0; i <= 256; i++ {
			if freq[i] != 0 && freq[i] <= v {
				v, c1 = freq[i], i
			}
		}
		v = int(^uint(0) >> 1)
		for i := 0; i <= 256; i++ {
			if freq[i] != 0 && freq[i] <= v && i != c1 {
				v, c2 = freq[i], i
			}
		}
		if c2 < 0 {
			break
		}

		freq[c1] += freq[c2]
		freq[c2] = 0

		codesize[c1]++
		for others[c1] >= 0 {
			c1 = others[c1]
			codesize[c1]++
		}
		others[c1] = c2

		codesize[c2]++
		for others[c2] >= 0 {
			c2 = others[c2]
			codesize[c2]++
		}
	}

	var bits [maxCodeLen + 1]int
	for _, s := range codesize {
		if s != 0 {
			bits[s]++
		}
	}

	// Limit code lengths to 16 bits.
	for i := maxCodeLen; i > 16; i-- {
		for bits[i] > 0 {
			j := i - 2
			for bits[j] == 0 {
				j--
			}
			bits[i] -= 2
			bits[i-1]++
			bits[j+1] += 2
			bits[j]--
		}
	}
	// Drop the reserved code point from the longest length.
	i := 16
	for bits[i] == 0 {
		i--
	}
	bits[i]--

	t := &huffTable{}
	copy(t.bits[:], bits[:17])
	for l := 1; l <= maxCodeLen; l++ {
		for sym := 0; sym < 256; sym++ {
			if codesize[sym] == l {
				t.vals = append(t.vals, byte(sym))
			}
		}
	}

	// Canonical codes (Annex C).
	code, k := uint16(0), 0
	for l := 1; l <= 16; l++ {
		for n := 0; n < t.bits[l]; n++ {
			sym := t.vals[k]
			t.code[sym] = code
			t.size[sym] = uint8(l)
			code++
			k++
		}
		code <<= 1
	}
	return t
}
