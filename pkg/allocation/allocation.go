package allocation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/thematters/contracts/pkg/merkle"
)

// FieldTypes is the leaf encoding of a billboard distribution tree:
// content id, recipient account, amount.
var FieldTypes = []string{"string", "address", "uint256"}

// TotalBasisPoints is what the shares of a full distribution add up to.
const TotalBasisPoints = 10000

// Allocation assigns an amount to the account that published a piece of content.
type Allocation struct {
	ContentID string
	Account   common.Address
	Amount    *big.Int
}

type allocationJSON struct {
	ContentID string `json:"cid"`
	Account   string `json:"account"`
	Amount    string `json:"amount"`
}

// Values returns the allocation as a merkle leaf.
func (a *Allocation) Values() merkle.Leaf {
	return merkle.Leaf{a.ContentID, a.Account.Hex(), a.Amount.String()}
}

// Validate checks an allocation can be encoded as a leaf.
func (a *Allocation) Validate() error {
	if a.ContentID == "" {
		return fmt.Errorf("content id cannot be empty")
	}
	if a.Amount == nil {
		return fmt.Errorf("amount cannot be nil")
	}
	if a.Amount.Sign() < 0 {
		return fmt.Errorf("amount cannot be negative: %s", a.Amount)
	}
	if a.Amount.BitLen() > 256 {
		return fmt.Errorf("amount overflows uint256: %s", a.Amount)
	}
	return nil
}

// FromLeaf converts a tree entry back into an allocation.
func FromLeaf(leaf merkle.Leaf) (*Allocation, error) {
	if len(leaf) != len(FieldTypes) {
		return nil, fmt.Errorf("leaf has %d values, expected %d", len(leaf), len(FieldTypes))
	}
	return parse(leaf[0], leaf[1], leaf[2])
}

func parse(cid, account, amount string) (*Allocation, error) {
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("invalid account address %q", account)
	}
	n, ok := math.ParseBig256(amount)
	if !ok || amount == "" {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	a := &Allocation{
		ContentID: cid,
		Account:   common.HexToAddress(account),
		Amount:    n,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Leaves converts allocations to merkle leaves, preserving order.
func Leaves(allocs []*Allocation) ([]merkle.Leaf, error) {
	leaves := make([]merkle.Leaf, len(allocs))
	for i, a := range allocs {
		if a == nil {
			return nil, fmt.Errorf("allocation %d is nil", i)
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("allocation %d: %w", i, err)
		}
		leaves[i] = a.Values()
	}
	return leaves, nil
}

// BuildTree builds the distribution tree for allocs.
func BuildTree(allocs []*Allocation, opts *merkle.TreeOptions) (*merkle.Tree, error) {
	leaves, err := Leaves(allocs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", merkle.ErrValidation, err)
	}
	return merkle.BuildWithOptions(leaves, FieldTypes, opts)
}

// TotalAmount sums the amounts of allocs.
func TotalAmount(allocs []*Allocation) *big.Int {
	total := new(big.Int)
	for _, a := range allocs {
		if a != nil && a.Amount != nil {
			total.Add(total, a.Amount)
		}
	}
	return total
}

// ValidateShares checks that amounts are basis points of a full distribution.
func ValidateShares(allocs []*Allocation) error {
	total := TotalAmount(allocs)
	if total.Cmp(big.NewInt(TotalBasisPoints)) != 0 {
		return fmt.Errorf("shares add up to %s basis points, expected %d", total, TotalBasisPoints)
	}
	return nil
}

// ParseAllocations decodes a JSON array whose items are either
// ["cid", "0xaccount", "amount"] tuples or {"cid","account","amount"} objects.
func ParseAllocations(data []byte) ([]*Allocation, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allocations: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("allocation list is empty")
	}

	allocs := make([]*Allocation, 0, len(items))
	for i, raw := range items {
		a, err := parseItem(raw)
		if err != nil {
			return nil, fmt.Errorf("allocation %d: %w", i, err)
		}
		allocs = append(allocs, a)
	}
	return allocs, nil
}

func parseItem(raw json.RawMessage) (*Allocation, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tuple []string
		if err := json.Unmarshal(trimmed, &tuple); err != nil {
			return nil, fmt.Errorf("invalid tuple: %w", err)
		}
		if len(tuple) != len(FieldTypes) {
			return nil, fmt.Errorf("tuple has %d values, expected %d", len(tuple), len(FieldTypes))
		}
		return parse(tuple[0], tuple[1], tuple[2])
	}

	var obj allocationJSON
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("invalid object: %w", err)
	}
	return parse(obj.ContentID, obj.Account, obj.Amount)
}

// LoadAllocations reads allocations from a JSON file.
func LoadAllocations(path string) ([]*Allocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read allocations file: %w", err)
	}
	return ParseAllocations(data)
}
