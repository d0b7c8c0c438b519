package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/thematters/contracts/pkg/config"
	"github.com/thematters/contracts/pkg/merkle"
)

const (
	defaultAllocationsPath = "examples/billboard/allocations.json"
	defaultRedisAddress    = "localhost:6379"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "billboard",
		Usage: "Billboard distribution trees and logbook metadata payloads",
		Description: `Tools for the billboard and logbook contracts.

This tool can:
- Build a Merkle tree over [cid, address, amount] allocations and persist it
- Print and verify inclusion proofs for a persisted tree
- ABI-encode logbook token metadata for the metadata renderer`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvDebug},
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   "Tree store backend: " + config.GetSupportedStoreTypesString(),
				Value:   config.StoreTypeFile.String(),
				EnvVars: []string{config.EnvStoreType},
			},
			&cli.StringFlag{
				Name:    "store-path",
				Usage:   "Output directory for the file store, database directory for badger",
				Value:   config.DefaultStorePath,
				EnvVars: []string{config.EnvStorePath},
			},
			&cli.StringFlag{
				Name:    "tree-name",
				Aliases: []string{"name"},
				Usage:   "Name of the tree inside the store",
				Value:   config.DefaultTreeName,
				EnvVars: []string{config.EnvTreeName},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis server address",
				Value:   defaultRedisAddress,
				EnvVars: []string{config.EnvRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number (0-15)",
				EnvVars: []string{config.EnvRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Usage:   "Prefix for all redis keys",
				EnvVars: []string{config.EnvRedisKeyPrefix},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Build a distribution tree from allocations, save it and print every proof",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "allocations",
						Aliases: []string{"a"},
						Usage:   "JSON file of [cid, address, amount] tuples",
						Value:   defaultAllocationsPath,
						EnvVars: []string{config.EnvAllocations},
					},
					&cli.StringFlag{
						Name:    "hash",
						Usage:   "Hash algorithm: keccak256 (default), sha3-256, blake2b",
						Value:   string(merkle.DefaultHashAlgorithm),
						EnvVars: []string{config.EnvHash},
					},
					&cli.BoolFlag{
						Name:  "require-full-shares",
						Usage: "Fail unless amounts add up to 10000 basis points",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of goroutines hashing leaves (0: one per CPU)",
					},
				},
				Action: generateCommand,
			},
			{
				Name:  "proofs",
				Usage: "Print the proofs of a saved tree",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "index",
						Usage: "Only print the proof of this leaf",
					},
					&cli.BoolFlag{
						Name:  "render",
						Usage: "Draw every level of the tree before the proofs",
					},
				},
				Action: proofsCommand,
			},
			{
				Name:  "verify",
				Usage: "Verify an inclusion proof against a root, or against a saved tree with --tree",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "leaf",
						Usage:    `Leaf values as a JSON array, e.g. '["Qm...","0x...","1000"]'`,
						Required: true,
					},
					&cli.StringFlag{
						Name:  "proof",
						Usage: "Comma separated sibling hashes, or a JSON array (empty for a single leaf tree)",
					},
					&cli.StringFlag{
						Name:  "root",
						Usage: "Expected Merkle root (required without --tree)",
					},
					&cli.StringFlag{
						Name:  "tree",
						Usage: "Look the leaf up in this saved tree; its proof and root are used unless given",
					},
					&cli.StringFlag{
						Name:  "hash",
						Usage: "Hash algorithm the tree was built with",
						Value: string(merkle.DefaultHashAlgorithm),
					},
					&cli.StringFlag{
						Name:  "types",
						Usage: "Comma separated leaf field types",
						Value: "string,address,uint256",
					},
				},
				Action: verifyCommand,
			},
			{
				Name:   "list",
				Usage:  "List the trees in the store",
				Action: listCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a tree from the store",
				ArgsUsage: "<name>",
				Action:    deleteCommand,
			},
			{
				Name:      "logbook-metadata",
				Usage:     "ABI-encode the metadata of a logbook token URI",
				ArgsUsage: "<tokenURI>",
				Flags: []cli.Flag{
					&cli.UintFlag{
						Name:  "log-count",
						Usage: "Use this log count instead of the one in the image",
					},
					&cli.UintFlag{
						Name:  "transfer-count",
						Usage: "Use this transfer count instead of the one in the image",
					},
					&cli.StringFlag{
						Name:  "token-id",
						Usage: "Use this token id instead of the one in the image",
					},
					&cli.BoolFlag{
						Name:  "with-selector",
						Usage: "Prefix the payload with the function selector",
					},
				},
				Action: logbookMetadataCommand,
			},
		},
	}
}
