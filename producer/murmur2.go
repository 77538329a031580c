package producer

import (
	"hash"

	"github.com/Shopify/sarama"
)

// NewJVMCompatiblePartitioner creates a Sarama partitioner hashing keys
// with murmur2, like the JVM Kafka clients do, so that a key lands on the
// same partition whichever client produced it.
// It is the default partitioner set by NewConfig.
func NewJVMCompatiblePartitioner(topic string) sarama.Partitioner {
	return sarama.NewCustomHashPartitioner(MurmurHasher)(topic)
}

// MurmurHasher returns a hash.Hash32 computing the murmur2 hash of the
// last slice written to it. Sarama writes each key exactly once, so
// the hasher does not support streaming.
func MurmurHasher() hash.Hash32 {
	return new(murmurHash)
}

type murmurHash struct {
	sum int32
}

func (h *murmurHash) Write(data []byte) (int, error) {
	h.sum = murmur2(data)
	return len(data), nil
}

func (h *murmurHash) Reset() { h.sum = 0 }

func (h *murmurHash) Size() int { return 4 }

func (h *murmurHash) BlockSize() int { return 4 }

// Sum appends nothing: Sarama only reads Sum32.
func (h *murmurHash) Sum(b []byte) []byte { return b }

// Sum32 returns the positive hash, masked the same way as
// org.apache.kafka.common.utils.Utils.toPositive.
func (h *murmurHash) Sum32() uint32 {
	return uint32(h.sum & 0x7fffffff)
}

const (
	murmurSeed uint32 = 0x9747b28c
	murmurMul  uint32 = 0x5bd1e995
	murmurRot         = 24
)

// murmur2 is the 32 bits murmur2 variant of
// org.apache.kafka.common.utils.Utils.murmur2.
func murmur2(data []byte) int32 {
	n := len(data)
	h := murmurSeed ^ uint32(n)

	i := 0
	for ; i+4 <= n; i += 4 {
		k := uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
		k *= murmurMul
		k ^= k >> murmurRot
		k *= murmurMul
		h *= murmurMul
		h ^= k
	}

	switch n - i {
	case 3:
		h ^= uint32(data[i+2]) << 16
		fallthrough
	case 2:
		h ^= uint32(data[i+1]) << 8
		fallthrough
	case 1:
		h ^= uint32(data[i])
		h *= murmurMul
	}

	h ^= h >> 13
	h *= murmurMul
	h ^= h >> 15
	return int32(h)
}
