package jpegenc

// Base quantization tables from ITU T.81 Annex K, in natural (row-major) order.
var baseQuant = [2][64]int{
	{
		16, 11, 10, 16, 24, 40, 51, 61,
		12, 12, 14, 19, 26, 58, 60, 55,
		14, 13, 16, 24, 40, 57, 69, 56,
		14, 17, 22, 29, 51, 87, 80, 62,
		18, 22, 37, 56, 68, 109, 103, 77,
		24, 35, 55, 64, 81, 104, 113, 92,
		49, 64, 78, 87, 103, 121, 120, 101,
		72, 92, 95, 98, 112, 100, 103, 99,
	},
	{
		17, 18, 24, 47, 99, 99, 99, 99,
		18, 21, 26, 66, 99, 99, 99, 99,
		24, 26, 56, 99, 99, 99, 99, 99,
		47, 66, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
		99, 99, 99, 99, 99, 99, 99, 99,
	},
}

// zigzag[k] is the natural-order index of the k-th coefficient in scan order.
var zigzag [64]int

func init() {
	k := 0
	for s := 0; s < 15; s++ {
		lo, hi := max(0, s-7), min(s, 7)
		if s%2 == 0 {
			for row := hi; row >= lo; row-- {
				zigzag[k] = row*8 + (s - row)
				k++
			}
		} else {
			for row := lo; row <= hi; row++ {
				zigzag[k] = row*8 + (s - row)
				k++
			}
		}
	}
}

// scaleQuant returns the quantization tables for quality (1..100), using the
// IJG scaling curve and clamping entries to the baseline range 1..255.
func scaleQuant(quality int) [2][64]int {
	scale := 200 - 2*quality
	if quality < 50 {
		scale = 5000 / quality
	}
	var out [2][64]int
	for t := range out {
		for i, b := range baseQuant[t] {
			out[t][i] = min(255, max(1, (b*scale+50)/100))
		}
	}
	return out
}
