package main

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// serve runs the HTTP server until ctx is canceled, then shuts it down. A server that
// fails to start (e.g. because its port is taken) ends the call immediately.
func serve(ctx context.Context, server *http.Server, logger *logrus.Entry) error {
	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		logger.WithField("addr", server.Addr).Info("listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	wg.Go(func() error {
		<-ctx.Done()
		logger.Info("closing server")
		return server.Shutdown(context.Background())
	})
	return wg.Wait()
}
