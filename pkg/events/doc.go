/*
Package events provides an in-memory event broker for zakuro's internal
pub/sub: worker lifecycle, task outcomes, and credit ledger
transitions, broadcast to whatever subscribes (metrics, audit logging,
future webhook fan-out).

Non-blocking publish, buffered per-subscriber channels, best-effort
delivery: a slow or absent subscriber never blocks the broker or the
caller that published the event.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		for event := range sub {
			log.Printf("%s: %s", event.Type, event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:     events.EventWorkerDown,
		Message:  "worker 10.0.0.5:3960 marked unhealthy",
		Metadata: map[string]string{"endpoint": "10.0.0.5:3960"},
	})

Event types: worker.{joined,down,unhealthy}, task.{created,completed,failed},
credit.{reserved,settled,refunded}, instance.created, affinity.lost.
*/
package events
