package ternary

// CodesPerWord is how many 2-bit ternary codes one packed word holds.
const CodesPerWord = 32 / 2

// PackedLen returns the number of 32-bit words needed for n codes.
func PackedLen(n int) int {
	return (n + CodesPerWord - 1) / CodesPerWord
}

// Pack encodes ternary codes into 32-bit words, 2 bits per code. Each
// code is offset by +2 so -1,0,1 become 1,2,3 (field value 0 is the
// padding code). Code t of a word occupies bits [2t, 2t+1], which is
// byte-for-byte the little-endian layout of four 4-code bytes.
func Pack(codes []int8) []uint32 {
	words := make([]uint32, PackedLen(len(codes)))
	for i, c := range codes {
		words[i/CodesPerWord] |= uint32(uint8(c+2)) << (2 * (i % CodesPerWord))
	}
	return words
}

// PackMatrix packs a row-major rows x cols code buffer one row at a
// time, so every row starts on a word boundary and short final chunks
// are padded with the zero field. Result is rows*PackedLen(cols) words.
func PackMatrix(codes []int8, rows, cols int) []uint32 {
	wordsPerRow := PackedLen(cols)
	out := make([]uint32, 0, rows*wordsPerRow)
	for r := 0; r < rows; r++ {
		out = append(out, Pack(codes[r*cols:(r+1)*cols])...)
	}
	return out
}

// UnpackMatrix is the inverse of PackMatrix.
func UnpackMatrix(words []uint32, rows, cols int) []int8 {
	wordsPerRow := PackedLen(cols)
	out := make([]int8, 0, rows*cols)
	for r := 0; r < rows; r++ {
		out = append(out, Unpack(words[r*wordsPerRow:(r+1)*wordsPerRow], cols)...)
	}
	return out
}

// Unpack decodes n ternary codes from packed words, undoing the +2
// offset. n may be anything up to len(words)*CodesPerWord; trailing
// padding fields are simply not decoded.
func Unpack(words []uint32, n int) []int8 {
	codes := make([]int8, n)
	for i := range codes {
		field := (words[i/CodesPerWord] >> (2 * (i % CodesPerWord))) & 0x3
		codes[i] = int8(field) - 2
	}
	return codes
}
