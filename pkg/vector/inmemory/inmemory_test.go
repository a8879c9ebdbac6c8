package inmemory_test

import (
	. "github.com/onsi/ginkgo/v2"

	"github.com/papercomputeco/callctx/pkg/vector"
	"github.com/papercomputeco/callctx/pkg/vector/inmemory"
	"github.com/papercomputeco/callctx/pkg/vector/vectortest"
)

var _ = Describe("Driver", func() {
	vectortest.StoreBehaviors(func() vector.Store {
		return inmemory.NewDriver()
	})
})
