// Package encoding holds the compact codec for tile-kind grids. Maze
// layouts are long runs of open floor broken by the occasional wall, so
// run-length pairs compress them well and stay cheap to decode.
package encoding

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// EncodeKindRuns packs a row-major sequence of tile kinds into
// base64(varint pairs). The pairs are (kind, run_len) repeated.
func EncodeKindRuns(kinds []int) string {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(kinds) {
		k := kinds[i]
		run := 1
		for j := i + 1; j < len(kinds) && kinds[j] == k && run < 1<<31; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(k))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func DecodeKindRuns(b64 string) ([]int, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	var out []int
	for i := 0; i < len(raw); {
		k, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if k > 0xFFFF {
			return nil, fmt.Errorf("tile kind too large: %d", k)
		}
		for j := 0; j < int(run); j++ {
			out = append(out, int(k))
		}
	}
	return out, nil
}
