package cmd

import (
	"io"
	"runtime"

	"grimm.is/rulegate/internal/brand"
	"grimm.is/rulegate/internal/config"
)

// RunVersion prints build information.
func RunVersion(w io.Writer) {
	Printer.Fprintf(w, "%s %s (%s)\n", brand.Name, brand.Version, brand.GitCommit)
	Printer.Fprintf(w, "  config schema: %s\n", config.CurrentSchemaVersion)
	Printer.Fprintf(w, "  go:            %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
