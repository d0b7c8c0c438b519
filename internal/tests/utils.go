package tests

import (
	"os"
	"path/filepath"
)

// GetProjectRootPath walks up from the working directory to the directory containing go.mod.
func GetProjectRootPath() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	p := wd
	for iterations := 0; iterations <= 10; iterations++ {
		if _, err := os.Stat(filepath.Join(p, "go.mod")); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
	panic("Could not find project root path from " + wd)
}

// ExampleAllocationsPath returns the bundled billboard allocations file.
func ExampleAllocationsPath() string {
	return filepath.Join(GetProjectRootPath(), "examples", "billboard", "allocations.json")
}
