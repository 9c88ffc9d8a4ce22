package journal

import (
	"hash/crc32"
	"strconv"
	"strings"
)

// CalculateChecksum is the CRC32-IEEE of every field except the checksum
// itself, joined with a separator that cannot appear in a name.
func CalculateChecksum(e Entry) uint32 {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(e.Seq, 10))
	for _, f := range []string{
		strconv.FormatInt(e.Timestamp, 10),
		e.Entity, e.Kind, e.Key, e.Name, e.Machine, e.From, e.To,
	} {
		b.WriteByte(0x1f)
		b.WriteString(f)
	}
	return crc32.ChecksumIEEE([]byte(b.String()))
}

// VerifyChecksum reports whether e carries the checksum of its content.
func VerifyChecksum(e Entry) bool {
	return e.Checksum == CalculateChecksum(e)
}
