// Copyright 2014 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pdf

import (
	"encoding/binary"
	"math/rand/v2"
)

// GenerateFileID returns a 16-byte file identifier derived from two seeds.
// Equal seeds give equal identifiers. The identifier only tells documents
// apart; it is not a secret.
func GenerateFileID(seed1, seed2 uint32) []byte {
	rng := rand.New(rand.NewPCG(uint64(seed1), uint64(seed2)))
	id := make([]byte, 16)
	for i := 0; i < len(id); i += 4 {
		binary.BigEndian.PutUint32(id[i:], rng.Uint32())
	}
	return id
}
