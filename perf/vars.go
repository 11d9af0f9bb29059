package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency        = metric.NewHistogram("1m1s")
	MessageSize            = metric.NewHistogram("10s1s")
	MessagesPerSecond      = metric.NewCounter("10s1s")
	BytesPerSecond         = metric.NewCounter("10s1s")
	RoutingPerSecond       = metric.NewCounter("10s1s")
	ProbesPerSecond        = metric.NewCounter("10s1s")
	DroppedPerSecond       = metric.NewCounter("10s1s")
	ProbesDeliveredCounter = metric.NewCounter("1m1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("routesim:MessageSize", MessageSize)
	expvar.Publish("routesim:Messages/s", MessagesPerSecond)
	expvar.Publish("routesim:Bytes/s", BytesPerSecond)
	expvar.Publish("routesim:Routing/s", RoutingPerSecond)
	expvar.Publish("routesim:Probes/s", ProbesPerSecond)
	expvar.Publish("routesim:Dropped/s", DroppedPerSecond)
	expvar.Publish("routesim:ProbesDelivered", ProbesDeliveredCounter)
	expvar.Publish("routesim:DispatchLatency (µs)", DispatchLatency)
}
