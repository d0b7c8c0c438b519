package allocation

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thematters/contracts/internal/tests"
	"github.com/thematters/contracts/pkg/merkle"
)

func testAllocations() []*Allocation {
	return []*Allocation{
		{ContentID: "Qmf5z5DKcwNWYUP9udvnSCTN2Se4A8kpZJY7JuUVFEqdGU", Account: common.HexToAddress("0x66"), Amount: big.NewInt(1000)},
		{ContentID: "QmSAwncsWGXeqwrL5USBzQXvjqfH1nFfARLGM91sfd4NZe", Account: common.HexToAddress("0x67"), Amount: big.NewInt(2055)},
		{ContentID: "QmUQQSeWxcqoNLKroGtz137c7QBWpzbNr9RcqDtVzZxJ3x", Account: common.HexToAddress("0x68"), Amount: big.NewInt(6945)},
	}
}

func TestParseAllocations(t *testing.T) {
	t.Run("tuples", func(t *testing.T) {
		data := []byte(`[["Qm1","0x0000000000000000000000000000000000000066","1000"],["Qm2","0x0000000000000000000000000000000000000067","0x10"]]`)
		allocs, err := ParseAllocations(data)
		require.NoError(t, err)
		require.Len(t, allocs, 2)
		assert.Equal(t, "Qm1", allocs[0].ContentID)
		assert.Equal(t, common.HexToAddress("0x66"), allocs[0].Account)
		assert.Equal(t, int64(16), allocs[1].Amount.Int64())
	})

	t.Run("objects", func(t *testing.T) {
		data := []byte(`[{"cid":"Qm1","account":"0x0000000000000000000000000000000000000066","amount":"1000"}]`)
		allocs, err := ParseAllocations(data)
		require.NoError(t, err)
		require.Len(t, allocs, 1)
		assert.Equal(t, int64(1000), allocs[0].Amount.Int64())
	})

	invalid := map[string]string{
		"not json":      `nope`,
		"empty":         `[]`,
		"short tuple":   `[["Qm1","0x0000000000000000000000000000000000000066"]]`,
		"bad address":   `[["Qm1","0x66","1"]]`,
		"negative":      `[["Qm1","0x0000000000000000000000000000000000000066","-1"]]`,
		"empty cid":     `[["","0x0000000000000000000000000000000000000066","1"]]`,
		"missing field": `[{"cid":"Qm1","account":"0x0000000000000000000000000000000000000066"}]`,
	}
	for name, data := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAllocations([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestLoadAllocationsExampleFile(t *testing.T) {
	allocs, err := LoadAllocations(tests.ExampleAllocationsPath())
	require.NoError(t, err)
	require.Len(t, allocs, 3)
	require.NoError(t, ValidateShares(allocs))
}

func TestLoadAllocationsMissingFile(t *testing.T) {
	_, err := LoadAllocations(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestBuildTree(t *testing.T) {
	allocs := testAllocations()
	tree, err := BuildTree(allocs, nil)
	require.NoError(t, err)
	require.Equal(t, 3, tree.Len())
	require.Equal(t, FieldTypes, tree.FieldTypes())

	for i, leaf := range tree.Entries() {
		a, err := FromLeaf(leaf)
		require.NoError(t, err)
		assert.Equal(t, allocs[i].ContentID, a.ContentID)
		assert.Equal(t, allocs[i].Account, a.Account)
		assert.Equal(t, 0, allocs[i].Amount.Cmp(a.Amount))

		proof, err := tree.GetProof(i)
		require.NoError(t, err)
		digest, err := merkle.LeafHash(allocs[i].Values(), FieldTypes)
		require.NoError(t, err)
		require.True(t, merkle.Verify(digest, proof, tree.Root))
	}
}

func TestBuildTreeInvalid(t *testing.T) {
	allocs := testAllocations()
	allocs[1].Amount = big.NewInt(-3)

	_, err := BuildTree(allocs, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, merkle.ErrValidation))

	_, err = BuildTree([]*Allocation{nil}, nil)
	require.True(t, errors.Is(err, merkle.ErrValidation))

	_, err = BuildTree(nil, nil)
	require.True(t, errors.Is(err, merkle.ErrValidation))
}

func TestShares(t *testing.T) {
	allocs := testAllocations()
	require.Equal(t, int64(TotalBasisPoints), TotalAmount(allocs).Int64())
	require.NoError(t, ValidateShares(allocs))

	allocs[0].Amount = big.NewInt(999)
	require.Error(t, ValidateShares(allocs))
}

func TestFromLeafInvalid(t *testing.T) {
	_, err := FromLeaf(merkle.Leaf{"Qm"})
	require.Error(t, err)
	_, err = FromLeaf(merkle.Leaf{"Qm", "0x0000000000000000000000000000000000000066", "x"})
	require.Error(t, err)
}
