package memory

import (
	"testing"

	"pyquest-gamification/internal/docstore"
	"pyquest-gamification/internal/docstore/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) docstore.Store {
		return NewStore()
	})
}
