package journal

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Run ids are ULIDs: 26 Crockford base32 characters, a 48-bit millisecond
// timestamp followed by 80 bits of which the first 16 are a per-millisecond
// sequence. Ids from one process sort in creation order.

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var ids struct {
	mu     sync.Mutex
	lastTS uint64
	seq    uint16
}

// NewID returns a new run id.
func NewID() string {
	return newIDAt(time.Now())
}

func newIDAt(now time.Time) string {
	ids.mu.Lock()
	defer ids.mu.Unlock()

	ts := uint64(now.UnixMilli())
	if ts <= ids.lastTS {
		ts = ids.lastTS
		ids.seq++
	} else {
		ids.lastTS = ts
		ids.seq = 0
	}

	var b [16]byte
	binary.BigEndian.PutUint16(b[0:2], uint16(ts>>32))
	binary.BigEndian.PutUint32(b[2:6], uint32(ts))
	rand.Read(b[8:])
	binary.BigEndian.PutUint16(b[6:8], ids.seq)
	return encode(b)
}

// encode writes 128 bits as 26 base32 characters. The first character
// carries only the top 3 bits.
func encode(b [16]byte) string {
	var out [26]byte
	bit := -2
	for i := range out {
		var v byte
		for range 5 {
			v <<= 1
			if bit >= 0 && b[bit/8]&(0x80>>(bit%8)) != 0 {
				v |= 1
			}
			bit++
		}
		out[i] = crockford[v]
	}
	return string(out[:])
}
