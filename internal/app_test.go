package internal

import (
	"testing"

	"doclookup/internal/cli"

	"go.uber.org/fx"
)

func TestOptionsGraph(t *testing.T) {
	var runner *cli.Runner
	if err := fx.ValidateApp(options(), fx.Populate(&runner)); err != nil {
		t.Fatalf("dependency graph: %v", err)
	}
}
