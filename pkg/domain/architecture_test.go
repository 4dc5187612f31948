package domain

import (
	"testing"

	"mescore/testutil"
)

// The domain package is the public contract layer and must stay free of
// internal imports so external callers can depend on it.
func TestDomainHasNoInternalImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden,
		"pkg/domain must not depend on internal packages")
}
