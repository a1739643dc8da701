package memory_test

import (
	"testing"

	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store/memory"
	"github.com/BrandonDHaskell/tapbox/internal/tapbox/store/storetest"
)

func TestFS(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.FS { return memory.New() })
}
