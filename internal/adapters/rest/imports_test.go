package rest_test

import (
	"testing"

	"pharmxchain/testutil"
)

func TestNoDirectPersistenceImports(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.PersistenceImportForbidden,
		"the REST layer reaches storage only through the service")
}
