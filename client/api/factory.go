package api

import (
	"context"
	"time"

	"github.com/lidofinance/qvault/client/api/http_api"
	"github.com/lidofinance/qvault/client/config"
	"github.com/lidofinance/qvault/client/services/node"
)

const shutdownTimeout = 5 * time.Second

// Run starts the REST API and blocks until the context is canceled, then
// shuts the server down gracefully.
func Run(ctx context.Context, config *config.Config, node node.NodeService) error {
	provider := &http_api.RESTApiProvider{}

	if err := provider.NewServer(config, node); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- provider.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return provider.Stop(shutdownCtx)
	}
}
