// Package nxx embeds the nxx sync engine in a Go service.
//
// The client talks to the same Redis or Valkey deployment as the nxx processes, so an
// application backend can register schemas, manage device subscriptions and emit
// mutation events without going through the HTTP API.
//
//	client, _ := nxx.New(ctx, nxx.WithRedis("localhost:6379", ""))
//	defer client.Close()
//
//	_ = client.RegisterSchema(ctx, "A", nxx.Application{Models: map[string]nxx.Model{
//	    "post": {"status": {Type: nxx.String, Filterable: true}},
//	}})
//	_, _ = client.Subscribe(ctx, nxx.Subscription{
//	    DeviceID: "d1", AppID: "A", Model: "post",
//	    Filter: map[string]any{"status": "published"},
//	})
//	_ = client.Publish(ctx, nxx.Event{Event: nxx.ModelUpdated, Data: record})
//
// Publish hands the event to the fan-out queue consumed by `nxx fanout`. Dispatch runs
// the fan-out inline instead, for deployments without a fan-out worker.
package nxx
