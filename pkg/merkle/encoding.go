package merkle

import (
	"math/big"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/pkg/errors"
)

// Domain separation prefixes. A leaf digest is
// H(leafPrefix || H(signature) || abi.encode(values)) where signature is the
// canonical type list, e.g. "string,address,uint256". An internal node is
// H(nodePrefix || lo || hi).
const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// Leaf is one tuple of field values in their canonical text form: strings as-is,
// addresses as 0x hex, integers in decimal or 0x hex, bytes as 0x hex, bools as
// "true"/"false".
type Leaf []string

// LeafEncoding is the parsed field type sequence of a tree.
type LeafEncoding struct {
	tags      []string
	signature string
	args      abi.Arguments
}

// ParseLeafEncoding validates the type tags and prepares an ABI argument list for them.
func ParseLeafEncoding(fieldTypes []string) (*LeafEncoding, error) {
	if len(fieldTypes) == 0 {
		return nil, validationErrorf("leaf encoding must contain at least one type")
	}

	args := make(abi.Arguments, 0, len(fieldTypes))
	canonical := make([]string, 0, len(fieldTypes))
	for i, tag := range fieldTypes {
		typ, err := abi.NewType(tag, "", nil)
		if err != nil {
			return nil, validationErrorf("field %d: invalid type %q: %v", i, tag, err)
		}
		switch typ.T {
		case abi.StringTy, abi.AddressTy, abi.BoolTy, abi.BytesTy:
		case abi.UintTy, abi.IntTy:
			if typ.Size < 8 || typ.Size > 256 || typ.Size%8 != 0 {
				return nil, validationErrorf("field %d: invalid integer width in %q", i, tag)
			}
		case abi.FixedBytesTy:
			if typ.Size < 1 || typ.Size > 32 {
				return nil, validationErrorf("field %d: invalid byte width in %q", i, tag)
			}
		default:
			return nil, validationErrorf("field %d: unsupported type %q", i, tag)
		}
		args = append(args, abi.Argument{Type: typ})
		canonical = append(canonical, typ.String())
	}

	tags := make([]string, len(fieldTypes))
	copy(tags, fieldTypes)

	return &LeafEncoding{tags: tags, signature: strings.Join(canonical, ","), args: args}, nil
}

// Types returns a copy of the type tags.
func (e *LeafEncoding) Types() []string {
	out := make([]string, len(e.tags))
	copy(out, e.tags)
	return out
}

// Signature returns the canonical comma separated type list bound into every leaf digest.
func (e *LeafEncoding) Signature() string {
	return e.signature
}

// Encode ABI-encodes a leaf according to the field types.
func (e *LeafEncoding) Encode(leaf Leaf) ([]byte, error) {
	if len(leaf) != len(e.args) {
		return nil, validationErrorf("leaf has %d values, expected %d", len(leaf), len(e.args))
	}

	values := make([]interface{}, len(leaf))
	for i, raw := range leaf {
		v, err := convertValue(e.args[i].Type, raw)
		if err != nil {
			return nil, validationErrorf("field %d (%s): %v", i, e.tags[i], err)
		}
		values[i] = v
	}

	encoded, err := e.args.Pack(values...)
	if err != nil {
		return nil, validationErrorf("abi encoding failed: %v", err)
	}
	return encoded, nil
}

// LeafHash computes the leaf digest with the default hash algorithm.
func LeafHash(leaf Leaf, fieldTypes []string) (common.Hash, error) {
	enc, err := ParseLeafEncoding(fieldTypes)
	if err != nil {
		return common.Hash{}, err
	}
	h, _ := NewHasher(DefaultHashAlgorithm)
	return hashLeaf(h, enc, leaf)
}

func hashLeaf(h Hasher, enc *LeafEncoding, leaf Leaf) (common.Hash, error) {
	encoded, err := enc.Encode(leaf)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(h.Hash([]byte{leafPrefix}, h.Hash([]byte(enc.signature)), encoded)), nil
}

// hashPair combines two siblings in byte order so verification does not need
// to know which side a node was on.
func hashPair(h Hasher, a, b common.Hash) common.Hash {
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	return common.BytesToHash(h.Hash([]byte{nodePrefix}, a[:], b[:]))
}

func convertValue(typ abi.Type, raw string) (interface{}, error) {
	switch typ.T {
	case abi.StringTy:
		if !utf8.ValidString(raw) {
			return nil, errors.Errorf("string is not valid utf-8")
		}
		return raw, nil

	case abi.AddressTy:
		return parseAddress(raw)

	case abi.BoolTy:
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, errors.Errorf("invalid bool %q", raw)

	case abi.BytesTy:
		b, err := hexutil.Decode(raw)
		if err != nil {
			return nil, errors.Errorf("invalid bytes %q: %v", raw, err)
		}
		return b, nil

	case abi.FixedBytesTy:
		b, err := hexutil.Decode(raw)
		if err != nil {
			return nil, errors.Errorf("invalid bytes%d %q: %v", typ.Size, raw, err)
		}
		if len(b) != typ.Size {
			return nil, errors.Errorf("bytes%d value has %d bytes", typ.Size, len(b))
		}
		arr := reflect.New(typ.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil

	case abi.UintTy:
		n, ok := math.ParseBig256(raw)
		if !ok || raw == "" {
			return nil, errors.Errorf("invalid integer %q", raw)
		}
		if n.Sign() < 0 {
			return nil, errors.Errorf("uint%d value %s is negative", typ.Size, raw)
		}
		if n.BitLen() > typ.Size {
			return nil, errors.Errorf("value %s overflows uint%d", raw, typ.Size)
		}
		return nativeUint(n, typ.Size), nil

	case abi.IntTy:
		n, ok := math.ParseBig256(raw)
		if !ok || raw == "" {
			return nil, errors.Errorf("invalid integer %q", raw)
		}
		limit := new(big.Int).Lsh(big.NewInt(1), uint(typ.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, errors.Errorf("value %s overflows int%d", raw, typ.Size)
		}
		return nativeInt(n, typ.Size), nil
	}

	return nil, errors.Errorf("unsupported type %s", typ.String())
}

// parseAddress accepts lower, upper or correctly checksummed mixed case hex.
func parseAddress(raw string) (common.Address, error) {
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		return common.Address{}, errors.Errorf("address %q must be 0x prefixed", raw)
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, errors.Errorf("invalid address %q", raw)
	}
	addr := common.HexToAddress(raw)
	body := raw[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && "0x"+body != addr.Hex() {
		return common.Address{}, errors.Errorf("address %q has an invalid checksum", raw)
	}
	return addr, nil
}

// The abi packer wants native Go integers for sizes that have one.
func nativeUint(n *big.Int, size int) interface{} {
	switch size {
	case 8:
		return uint8(n.Uint64())
	case 16:
		return uint16(n.Uint64())
	case 32:
		return uint32(n.Uint64())
	case 64:
		return n.Uint64()
	}
	return n
}

func nativeInt(n *big.Int, size int) interface{} {
	switch size {
	case 8:
		return int8(n.Int64())
	case 16:
		return int16(n.Int64())
	case 32:
		return int32(n.Int64())
	case 64:
		return n.Int64()
	}
	return n
}
