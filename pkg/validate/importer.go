package validate

import (
	"go/importer"
	"go/types"
)

// newBestEffortImporter returns importer.Default(), which resolves standard
// library packages (the only imports a generated single-file snippet can
// reliably use without this process's own module graph). Any other import
// fails to resolve, and checkCompile reports that as a compile error.
func newBestEffortImporter() types.Importer {
	return importer.Default()
}
