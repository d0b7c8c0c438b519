package config

import (
	"fmt"
	"regexp"

	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/thematters/contracts/pkg/merkle"
)

// Environment variable names for the billboard CLI
const (
	EnvAllocations    = "BILLBOARD_ALLOCATIONS"
	EnvTreeName       = "BILLBOARD_TREE_NAME"
	EnvHash           = "BILLBOARD_HASH"
	EnvStoreType      = "BILLBOARD_STORE"
	EnvStorePath      = "BILLBOARD_STORE_PATH"
	EnvRedisAddress   = "BILLBOARD_REDIS_ADDRESS"
	EnvRedisPassword  = "BILLBOARD_REDIS_PASSWORD"
	EnvRedisDB        = "BILLBOARD_REDIS_DB"
	EnvRedisKeyPrefix = "BILLBOARD_REDIS_KEY_PREFIX"
	EnvDebug          = "BILLBOARD_DEBUG"
)

const (
	DefaultStorePath = "out"
	DefaultTreeName  = "tree"
)

type StoreType string

func (s StoreType) String() string {
	return string(s)
}

const (
	StoreTypeFile   StoreType = "file"
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

// GetSupportedStoreTypes returns all store backends
func GetSupportedStoreTypes() []StoreType {
	return []StoreType{StoreTypeFile, StoreTypeMemory, StoreTypeBadger, StoreTypeRedis}
}

// GetSupportedStoreTypesString returns supported store types for CLI help
func GetSupportedStoreTypesString() string {
	return fmt.Sprintf("%s (default), %s, %s, %s", StoreTypeFile, StoreTypeMemory, StoreTypeBadger, StoreTypeRedis)
}

// tree names end up in file names and database keys
var treeNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateTreeName checks a name is safe to use as a file name or key suffix.
func ValidateTreeName(name string) error {
	if !treeNamePattern.MatchString(name) || len(name) > 128 {
		return fmt.Errorf("invalid tree name %q: use letters, digits, '.', '_' or '-'", name)
	}
	return nil
}

// StoreConfig selects and configures the tree store backend
type StoreConfig struct {
	Type StoreType `json:"type"`

	// Path is the output directory for the file store or the database directory for badger
	Path string `json:"path"`

	RedisAddress   string `json:"redis_address"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`
}

func (sc *StoreConfig) Validate() error {
	var allErrors field.ErrorList
	root := field.NewPath("store")

	switch sc.Type {
	case StoreTypeFile, StoreTypeBadger:
		if sc.Path == "" {
			allErrors = append(allErrors, field.Required(root.Child("path"), fmt.Sprintf("path is required for the %s store", sc.Type)))
		}
	case StoreTypeRedis:
		if sc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(root.Child("redisAddress"), "redis address is required for the redis store"))
		}
		if sc.RedisDB < 0 || sc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(root.Child("redisDB"), sc.RedisDB, "must be between 0-15"))
		}
	case StoreTypeMemory:
	default:
		allErrors = append(allErrors, field.NotSupported(root.Child("type"), sc.Type, storeTypeStrings()))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// TreeConfig is the configuration for building and publishing a distribution tree
type TreeConfig struct {
	// AllocationsPath is a JSON file of [cid, address, amount] tuples
	AllocationsPath string `json:"allocations_path"`

	// TreeName identifies the tree inside the store (file store: <path>/<name>.json)
	TreeName string `json:"tree_name"`

	Hash merkle.HashAlgorithm `json:"hash"`

	// RequireFullShares rejects allocations whose amounts do not add up to 10000 basis points
	RequireFullShares bool `json:"require_full_shares"`

	Store StoreConfig `json:"store"`

	Debug bool `json:"debug"`
}

// Validate validates the tree configuration
func (c *TreeConfig) Validate() error {
	var allErrors field.ErrorList

	if c.AllocationsPath == "" {
		allErrors = append(allErrors, field.Required(field.NewPath("allocationsPath"), "allocations file is required"))
	}
	if err := ValidateTreeName(c.TreeName); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("treeName"), c.TreeName, err.Error()))
	}
	if _, err := merkle.NewHasher(c.Hash); err != nil {
		allErrors = append(allErrors, field.NotSupported(field.NewPath("hash"), c.Hash, hashStrings()))
	}
	if err := c.Store.Validate(); err != nil {
		allErrors = append(allErrors, field.Invalid(field.NewPath("store"), c.Store.Type, err.Error()))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func storeTypeStrings() []string {
	out := make([]string, 0, 4)
	for _, st := range GetSupportedStoreTypes() {
		out = append(out, st.String())
	}
	return out
}

func hashStrings() []string {
	out := make([]string, 0, 3)
	for _, h := range merkle.SupportedHashAlgorithms() {
		out = append(out, string(h))
	}
	return out
}
