//go:build integration

package test

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BaptisteLac/Zeus-sub000/internal/durable"
	"github.com/BaptisteLac/Zeus-sub000/internal/faststore"
	"github.com/BaptisteLac/Zeus-sub000/internal/syncclient"
)

const testPassword = "testpass123"

var userSeq atomic.Int64

// device is one client install: its own local stores and its own login.
type device struct {
	tokens faststore.Store
	client *syncclient.Client
	store  *durable.Store
}

func (s *IntegrationTestSuite) newDevice() *device {
	tokens, err := faststore.MemoryOpener()(faststore.NamespaceState)
	s.Require().NoError(err)
	s.T().Cleanup(func() {
		_ = tokens.Close()
	})

	client := syncclient.NewClient(serverEndpoint, tokens, syncclient.NewTracedHTTPClient(5*time.Second))
	return &device{
		tokens: tokens,
		client: client,
		store:  durable.NewStore(tokens, client),
	}
}

func newUsername() string {
	return fmt.Sprintf("lifter-%d-%d", time.Now().UnixNano(), userSeq.Add(1))
}
