package ternary

// Tile geometry of the target matmul kernel: each 16x32 tile mirrors the
// register layout of a warp-level MMA, with elements shuffled so each
// thread's fragment lands contiguously.
const (
	tileRows = 16
	tileCols = 32
)

// TileLayout reorders a flattened n x k ternary buffer into the fixed
// warp-tile layout. For destination (i, j) inside a tile:
//
//	thread = i*2 + j/16
//	srcRow = (thread/16)*8 + thread%8
//	srcCol = j%16 + 16*((thread%16)/8)
//
// Elements whose source or destination falls outside (n, k) keep the
// zero code. The mapping is a wire contract and must not change.
func TileLayout(codes []int8, n, k int) []int8 {
	out := make([]int8, n*k)
	for blockN := 0; blockN*tileRows < n; blockN++ {
		for blockK := 0; blockK*tileCols < k; blockK++ {
			permuteTile(out, codes, n, k, blockN, blockK)
		}
	}
	return out
}

func permuteTile(dst, src []int8, n, k, blockN, blockK int) {
	for i := 0; i < tileRows; i++ {
		for j := 0; j < tileCols; j++ {
			thread := i*2 + j/16
			srcRow := blockN*tileRows + (thread/16)*8 + thread%8
			srcCol := blockK*tileCols + j%16 + 16*((thread%16)/8)
			dstRow := blockN*tileRows + i
			dstCol := blockK*tileCols + j
			if srcRow >= n || srcCol >= k || dstRow >= n || dstCol >= k {
				continue
			}
			dst[dstRow*k+dstCol] = src[srcRow*k+srcCol]
		}
	}
}

// InverseTileLayout undoes TileLayout. Positions that the forward
// mapping never wrote (partial edge tiles) come back as the zero code.
func InverseTileLayout(codes []int8, n, k int) []int8 {
	out := make([]int8, n*k)
	for blockN := 0; blockN*tileRows < n; blockN++ {
		for blockK := 0; blockK*tileCols < k; blockK++ {
			for i := 0; i < tileRows; i++ {
				for j := 0; j < tileCols; j++ {
					thread := i*2 + j/16
					srcRow := blockN*tileRows + (thread/16)*8 + thread%8
					srcCol := blockK*tileCols + j%16 + 16*((thread%16)/8)
					dstRow := blockN*tileRows + i
					dstCol := blockK*tileCols + j
					if srcRow >= n || srcCol >= k || dstRow >= n || dstCol >= k {
						continue
					}
					out[srcRow*k+srcCol] = codes[dstRow*k+dstCol]
				}
			}
		}
	}
	return out
}
