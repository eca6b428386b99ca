// Package app assembles the bridge's Fx application graph.
package app

import (
	"context"
	"time"

	tally "github.com/uber-go/tally/v4"
	"go.uber.org/fx"

	"github.com/vaulterm/idebridge/src/idebridge/controller/mcpserver"
	"github.com/vaulterm/idebridge/src/idebridge/controller/selection"
	"github.com/vaulterm/idebridge/src/idebridge/gateway/hostview"
	"github.com/vaulterm/idebridge/src/idebridge/internal/core"
	"github.com/vaulterm/idebridge/src/idebridge/internal/discovery"
	"github.com/vaulterm/idebridge/src/idebridge/internal/scheduler"
	peerrepo "github.com/vaulterm/idebridge/src/idebridge/repository/peer"
)

// Module defines the idebridge application module.
var Module = fx.Options(
	hostview.Module, // host surface, replaced by an embedding host
	core.ConfigModule,
	core.LoggerModule,
	scheduler.Module,
	discovery.Module,
	mcpserver.Module,
	selection.Module,
	fx.Provide(peerrepo.New),
	fx.Provide(func(lc fx.Lifecycle) tally.Scope {
		rs, closer := tally.NewRootScope(tally.ScopeOptions{
			Tags: map[string]string{
				"service": "idebridge",
			},
		}, 1*time.Second)

		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return closer.Close()
			},
		})

		return rs
	}),
	fx.Invoke(registerHooks),
)

// registerHooks connects protocol events to the selection tracker: once the
// peer finishes tool discovery it is ready to receive the current editing
// context.
func registerHooks(server mcpserver.Controller, tracker selection.Controller) {
	server.RegisterHooks(mcpserver.Hooks{
		DiscoveryComplete: func() {
			tracker.NotifySelectionChanged(context.Background(), true)
		},
	})
}
