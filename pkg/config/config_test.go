package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thematters/contracts/pkg/merkle"
)

func validTreeConfig() *TreeConfig {
	return &TreeConfig{
		AllocationsPath: "examples/billboard/allocations.json",
		TreeName:        DefaultTreeName,
		Hash:            merkle.HashKeccak256,
		Store: StoreConfig{
			Type: StoreTypeFile,
			Path: DefaultStorePath,
		},
	}
}

func TestTreeConfig_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validTreeConfig().Validate())
	})

	t.Run("empty hash uses default", func(t *testing.T) {
		cfg := validTreeConfig()
		cfg.Hash = ""
		require.NoError(t, cfg.Validate())
	})

	testCases := []struct {
		name    string
		mutate  func(c *TreeConfig)
		errPart string
	}{
		{"missing allocations", func(c *TreeConfig) { c.AllocationsPath = "" }, "allocationsPath"},
		{"bad tree name", func(c *TreeConfig) { c.TreeName = "../etc/passwd" }, "treeName"},
		{"empty tree name", func(c *TreeConfig) { c.TreeName = "" }, "treeName"},
		{"unknown hash", func(c *TreeConfig) { c.Hash = "md5" }, "hash"},
		{"file store without path", func(c *TreeConfig) { c.Store.Path = "" }, "path is required"},
		{"unknown store", func(c *TreeConfig) { c.Store.Type = "s3" }, "store.type"},
		{"redis without address", func(c *TreeConfig) { c.Store.Type = StoreTypeRedis }, "redis address"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTreeConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errPart)
		})
	}
}

func TestStoreConfig_Validate(t *testing.T) {
	require.NoError(t, (&StoreConfig{Type: StoreTypeMemory}).Validate())
	require.NoError(t, (&StoreConfig{Type: StoreTypeBadger, Path: "/tmp/db"}).Validate())
	require.NoError(t, (&StoreConfig{Type: StoreTypeRedis, RedisAddress: "localhost:6379", RedisDB: 3}).Validate())

	err := (&StoreConfig{Type: StoreTypeRedis, RedisAddress: "localhost:6379", RedisDB: 16}).Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 0-15")
}

func TestValidateTreeName(t *testing.T) {
	for _, name := range []string{"tree", "billboard-2024.01", "round_3"} {
		require.NoError(t, ValidateTreeName(name), name)
	}
	for _, name := range []string{"", ".hidden", "a/b", "a b", "../x"} {
		require.Error(t, ValidateTreeName(name), name)
	}
}

func TestGetSupportedStoreTypesString(t *testing.T) {
	s := GetSupportedStoreTypesString()
	for _, st := range GetSupportedStoreTypes() {
		assert.Contains(t, s, st.String())
	}
}
