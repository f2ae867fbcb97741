// Package mqtt publishes database core events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Forwarding of pool events and of slow or failed statements
//
// # Topics
//
// Every topic sits under the configured base (default "dbcore/events"):
//
//	dbcore/events/status                   online/offline, retained
//	dbcore/events/pool/{pool}/{kind}       pool membership changes
//	dbcore/events/statement/{pool}/slow    statements over the slow threshold
//	dbcore/events/statement/{pool}/error   failed statements
//
// # Delivery
//
// Observers are called on the hot path of Acquire and of every statement,
// so the EventPublisher never blocks: events are queued and published by a
// background goroutine, and dropped when the queue is full.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	pub := mqtt.NewEventPublisher(client, cfg.MQTT.Topic, byte(cfg.MQTT.QoS))
//	pub.Start(ctx)
//	defer pub.Stop()
//
//	mgr.SetObserver(pub)
//	eng.SetObserver(pub)
package mqtt
