package watch

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// OutputDiff computes a unified diff between the stdout of the previous
// successful run and the current one. An empty string means the output
// is unchanged.
func OutputDiff(prev, curr []byte) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(prev)),
		B:        difflib.SplitLines(string(curr)),
		FromFile: "previous run",
		ToFile:   "current run",
		Context:  3,
	}

	unified, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("computing output diff: %w", err)
	}

	return unified, nil
}
