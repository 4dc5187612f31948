package memory

import (
	"testing"

	"mescore/testutil"
)

// Persistence backends sit below the service layer.
func TestStoreDoesNotImportCore(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.CoreImportForbidden,
		"persistence must not depend on the service layer")
}
