package ident

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/Blackdeer1524/GraphCatalog/src/pkg/errs"
)

// Long encodes n so that byte order matches numeric order.
func Long(n int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(n)^(1<<63))
}

func ToLong(id []byte) (int64, error) {
	if len(id) != 8 {
		return 0, errs.IllegalArgument("id", fmt.Sprintf("expected 8 bytes, got %d", len(id)))
	}

	return int64(binary.BigEndian.Uint64(id) ^ (1 << 63)), nil
}

const (
	tagInt64  byte = 0x01
	tagFloat  byte = 0x02
	tagString byte = 0x03
	tagBytes  byte = 0x04
	tagBool   byte = 0x05
)

// appendKey appends an order-preserving, lossless encoding of a primary key
// value. Keys of one table share a type, so the tag never affects ordering.
func appendKey(dst []byte, key any) ([]byte, error) {
	switch k := key.(type) {
	case int64:
		return append(append(dst, tagInt64), Long(k)...), nil
	case int:
		return appendKey(dst, int64(k))
	case float64:
		bits := math.Float64bits(k)
		if bits&(1<<63) == 0 {
			bits ^= 1 << 63
		} else {
			bits = ^bits
		}
		return binary.BigEndian.AppendUint64(append(dst, tagFloat), bits), nil
	case string:
		return append(append(dst, tagString), k...), nil
	case []byte:
		return append(append(dst, tagBytes), k...), nil
	case bool:
		if k {
			return append(dst, tagBool, 1), nil
		}
		return append(dst, tagBool, 0), nil
	case nil:
		return nil, errs.IllegalArgument("key", "primary key is null")
	}

	return nil, errs.IllegalArgument("key", fmt.Sprintf("unsupported primary key type %T", key))
}

func decodeKey(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, errs.IllegalArgument("id", "missing key")
	}

	payload := b[1:]
	switch b[0] {
	case tagInt64:
		return ToLong(payload)
	case tagFloat:
		if len(payload) != 8 {
			return nil, errs.IllegalArgument("id", "truncated float key")
		}
		bits := binary.BigEndian.Uint64(payload)
		if bits&(1<<63) != 0 {
			bits ^= 1 << 63
		} else {
			bits = ^bits
		}
		return math.Float64frombits(bits), nil
	case tagString:
		return string(payload), nil
	case tagBytes:
		return append([]byte(nil), payload...), nil
	case tagBool:
		if len(payload) != 1 {
			return nil, errs.IllegalArgument("id", "truncated bool key")
		}
		return payload[0] == 1, nil
	}

	return nil, errs.IllegalArgument("id", fmt.Sprintf("unknown key tag 0x%02x", b[0]))
}

// Strategy derives the global identity of an element from the table it is
// stored in and its primary key. Implementations are pure functions of
// their input.
type Strategy interface {
	Name() string
	ID(table string, key any) ([]byte, error)
}

const (
	SerializedName = "serialized"
	HashedName     = "hashed"
)

func StrategyByName(name string) (Strategy, error) {
	switch name {
	case SerializedName:
		return SerializedID{}, nil
	case HashedName:
		return HashedID{}, nil
	}

	return nil, errs.NotFound("id strategy", name)
}

// SerializedID encodes the table name with a length prefix followed by the
// key. The prefix keeps ids of different tables apart.
type SerializedID struct{}

func (SerializedID) Name() string {
	return SerializedName
}

func (SerializedID) ID(table string, key any) ([]byte, error) {
	dst := binary.AppendUvarint(nil, uint64(len(table)))
	dst = append(dst, table...)

	return appendKey(dst, key)
}

// DecodeSerialized is the inverse of SerializedID.ID.
func DecodeSerialized(id []byte) (string, any, error) {
	n, read := binary.Uvarint(id)
	if read <= 0 || uint64(len(id)-read) < n {
		return "", nil, errs.IllegalArgument("id", "malformed serialized id")
	}

	table := string(id[read : read+int(n)])

	key, err := decodeKey(id[read+int(n):])
	if err != nil {
		return "", nil, err
	}

	return table, key, nil
}

// hashedNamespace is fixed forever: changing it changes every hashed id.
var hashedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("graphcatalog:hashed-id"))

// HashedID is a name-based UUID (SHA-1) over the serialized form. Ids are 16
// bytes long whatever the key size, at the price of a negligible collision
// probability.
type HashedID struct{}

func (HashedID) Name() string {
	return HashedName
}

func (HashedID) ID(table string, key any) ([]byte, error) {
	serialized, err := SerializedID{}.ID(table, key)
	if err != nil {
		return nil, err
	}

	id := uuid.NewSHA1(hashedNamespace, serialized)

	return id[:], nil
}
