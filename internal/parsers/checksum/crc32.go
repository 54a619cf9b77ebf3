// Package checksum computes the CRC32 values stored in GPT headers and entry arrays.
package checksum

import (
	"hash/crc32"

	"github.com/deploymenttheory/go-gpt/internal/types"
)

// CRC32 returns the IEEE 802.3 CRC32 of data.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// HeaderCRC32 returns the checksum of the first headerSize bytes of raw with the
// header CRC32 field treated as zero. raw is not modified.
func HeaderCRC32(raw []byte, headerSize uint32) uint32 {
	h := crc32.NewIEEE()
	h.Write(raw[:types.HeaderCRC32Offset])
	h.Write([]byte{0, 0, 0, 0})
	h.Write(raw[types.HeaderCRC32Offset+4 : headerSize])
	return h.Sum32()
}
