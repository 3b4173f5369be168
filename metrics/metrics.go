// Package metrics exposes prometheus.Collector implementations for the
// client and pubsub packages. A Collector never starts its own HTTP
// server — registering it with a prometheus.Registry and serving
// /metrics is left to the embedding application.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pendingQueueDepthDesc = prometheus.NewDesc(
		"goredis_client_pending_queue_depth",
		"Number of requests awaiting a reply on a command client connection.",
		[]string{"instance_id"}, nil,
	)
	connectedDesc = prometheus.NewDesc(
		"goredis_client_connected",
		"1 if the command client currently has a live connection, 0 otherwise.",
		[]string{"instance_id"}, nil,
	)
	reconnectsTotalDesc = prometheus.NewDesc(
		"goredis_client_reconnects_total",
		"Total reconnect attempts made by a command client connection.",
		[]string{"instance_id"}, nil,
	)
	subDroppedTotalDesc = prometheus.NewDesc(
		"goredis_subscriber_dropped_messages_total",
		"Total pub/sub messages dropped due to queue overflow.",
		[]string{"instance_id"}, nil,
	)
	subQueueDepthDesc = prometheus.NewDesc(
		"goredis_subscriber_queue_depth",
		"Number of push messages buffered awaiting consumer ack.",
		[]string{"instance_id"}, nil,
	)
	subConnectedDesc = prometheus.NewDesc(
		"goredis_subscriber_connected",
		"1 if the subscriber currently has a live connection, 0 otherwise.",
		[]string{"instance_id"}, nil,
	)
	subReconnectsTotalDesc = prometheus.NewDesc(
		"goredis_subscriber_reconnects_total",
		"Total reconnect attempts made by a subscriber connection.",
		[]string{"instance_id"}, nil,
	)
)

// clientStats is the mutable state one registered Client contributes.
type clientStats struct {
	pendingDepth    int
	connected       bool
	reconnectsTotal int
}

// subStats is the mutable state one registered Subscriber contributes.
type subStats struct {
	queueDepth      int
	droppedTotal    int
	connected       bool
	reconnectsTotal int
}

// Collector implements prometheus.Collector, aggregating metrics across
// every Client/Subscriber registered with it via client.WithMetrics /
// pubsub.WithMetrics.
type Collector struct {
	mu       sync.Mutex
	clients  map[string]*clientStats
	subs     map[string]*subStats
}

// NewCollector returns an empty Collector ready to register with a
// prometheus.Registry.
func NewCollector() *Collector {
	return &Collector{
		clients: make(map[string]*clientStats),
		subs:    make(map[string]*subStats),
	}
}

// RegisterClient adds instanceID to the set of tracked command clients.
func (c *Collector) RegisterClient(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[instanceID] = &clientStats{}
}

// UnregisterClient stops tracking instanceID, e.g. on Client.Close.
func (c *Collector) UnregisterClient(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.clients, instanceID)
}

// SetPendingQueueDepth records the current pending-request count for
// instanceID.
func (c *Collector) SetPendingQueueDepth(instanceID string, depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.clients[instanceID]; ok {
		s.pendingDepth = depth
	}
}

// SetConnected records whether instanceID currently has a live connection.
func (c *Collector) SetConnected(instanceID string, connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.clients[instanceID]; ok {
		s.connected = connected
	}
}

// IncReconnects bumps the reconnect-attempt counter for instanceID,
// whichever of the two maps it is registered in — both driver kinds share
// the same reconnect policy and call this from the same place in it.
func (c *Collector) IncReconnects(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.clients[instanceID]; ok {
		s.reconnectsTotal++
		return
	}
	if s, ok := c.subs[instanceID]; ok {
		s.reconnectsTotal++
	}
}

// RegisterSubscriber adds instanceID to the set of tracked subscribers.
func (c *Collector) RegisterSubscriber(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[instanceID] = &subStats{}
}

// UnregisterSubscriber stops tracking instanceID.
func (c *Collector) UnregisterSubscriber(instanceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, instanceID)
}

// SetQueueDepth records the current push-message queue depth for
// instanceID.
func (c *Collector) SetQueueDepth(instanceID string, depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.subs[instanceID]; ok {
		s.queueDepth = depth
	}
}

// AddDropped adds n to the dropped-message counter for instanceID.
func (c *Collector) AddDropped(instanceID string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.subs[instanceID]; ok {
		s.droppedTotal += n
	}
}

// SetSubscriberConnected records whether instanceID currently has a live
// connection. Distinct from SetConnected, which tracks command clients
// registered via RegisterClient — a Subscriber's instanceID only ever
// exists in the subs map.
func (c *Collector) SetSubscriberConnected(instanceID string, connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.subs[instanceID]; ok {
		s.connected = connected
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- pendingQueueDepthDesc
	descs <- connectedDesc
	descs <- reconnectsTotalDesc
	descs <- subDroppedTotalDesc
	descs <- subQueueDepthDesc
	descs <- subConnectedDesc
	descs <- subReconnectsTotalDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, s := range c.clients {
		ch <- prometheus.MustNewConstMetric(pendingQueueDepthDesc, prometheus.GaugeValue, float64(s.pendingDepth), id)
		connected := 0.0
		if s.connected {
			connected = 1.0
		}
		ch <- prometheus.MustNewConstMetric(connectedDesc, prometheus.GaugeValue, connected, id)
		ch <- prometheus.MustNewConstMetric(reconnectsTotalDesc, prometheus.CounterValue, float64(s.reconnectsTotal), id)
	}
	for id, s := range c.subs {
		ch <- prometheus.MustNewConstMetric(subQueueDepthDesc, prometheus.GaugeValue, float64(s.queueDepth), id)
		ch <- prometheus.MustNewConstMetric(subDroppedTotalDesc, prometheus.CounterValue, float64(s.droppedTotal), id)
		subConnected := 0.0
		if s.connected {
			subConnected = 1.0
		}
		ch <- prometheus.MustNewConstMetric(subConnectedDesc, prometheus.GaugeValue, subConnected, id)
		ch <- prometheus.MustNewConstMetric(subReconnectsTotalDesc, prometheus.CounterValue, float64(s.reconnectsTotal), id)
	}
}
