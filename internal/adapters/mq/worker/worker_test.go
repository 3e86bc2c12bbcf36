package worker_test

import (
	"context"
	"testing"
	"time"

	queue "github.com/okian/rumble/internal/adapters/mq/queue"
	worker "github.com/okian/rumble/internal/adapters/mq/worker"
	model "github.com/okian/rumble/internal/domain/model"
	logging "github.com/okian/rumble/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// mockBus feeds broadcasters without a real queue behind it.
type mockBus struct {
	updateChan chan worker.Update
}

func newMockBus() *mockBus {
	return &mockBus{
		updateChan: make(chan worker.Update, 10),
	}
}

func (mb *mockBus) Dequeue(ctx context.Context) <-chan worker.Update {
	return mb.updateChan
}

func (mb *mockBus) close() {
	close(mb.updateChan)
}

func (mb *mockBus) push(u worker.Update) {
	mb.updateChan <- u
}

func TestRegistry(t *testing.T) {
	convey.Convey("Given a subscriber registry", t, func() {
		_ = logging.Init()
		registry := worker.NewRegistry()

		convey.Convey("When nobody has subscribed", func() {
			convey.So(registry.Count(), convey.ShouldEqual, 0)
		})

		convey.Convey("When a consumer subscribes", func() {
			ch, cancel := registry.Subscribe("party-1")

			convey.Convey("Then it should be counted", func() {
				convey.So(ch, convey.ShouldNotBeNil)
				convey.So(registry.Count(), convey.ShouldEqual, 1)
			})

			convey.Convey("And cancelling removes it and closes the channel", func() {
				cancel()
				convey.So(registry.Count(), convey.ShouldEqual, 0)

				_, open := <-ch
				convey.So(open, convey.ShouldBeFalse)
			})

			convey.Convey("And cancelling twice is harmless", func() {
				cancel()
				convey.So(cancel, convey.ShouldNotPanic)
			})
		})

		convey.Convey("When multiple consumers subscribe to different parties", func() {
			_, cancel1 := registry.Subscribe("party-1")
			_, cancel2 := registry.Subscribe("party-1")
			_, cancel3 := registry.Subscribe("party-2")
			defer cancel1()
			defer cancel2()
			defer cancel3()

			convey.So(registry.Count(), convey.ShouldEqual, 3)
		})
	})
}

func TestBroadcaster(t *testing.T) {
	convey.Convey("Given a broadcaster draining a bus", t, func() {
		_ = logging.Init()

		bus := newMockBus()
		registry := worker.NewRegistry()

		convey.Convey("When creating a broadcaster with options", func() {
			b := worker.NewBroadcaster(bus, registry, worker.WithName("test-broadcaster"))

			convey.Convey("Then it should be created successfully", func() {
				convey.So(b, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When running with a subscriber", func() {
			b := worker.NewBroadcaster(bus, registry)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go b.Run(ctx)
			time.Sleep(10 * time.Millisecond)

			ch, unsub := registry.Subscribe("party-1")
			defer unsub()

			convey.Convey("And an update for the party arrives", func() {
				bus.push(worker.Update{Type: model.UpdateResolved, PartyID: "party-1"})

				convey.Convey("Then the subscriber receives it", func() {
					select {
					case u := <-ch:
						convey.So(u.PartyID, convey.ShouldEqual, "party-1")
						convey.So(u.Type, convey.ShouldEqual, model.UpdateResolved)
					case <-time.After(time.Second):
						t.Fatal("update not delivered")
					}
				})
			})

			convey.Convey("And an update for another party arrives", func() {
				bus.push(worker.Update{Type: model.UpdateTotals, PartyID: "party-2"})
				time.Sleep(20 * time.Millisecond)

				convey.Convey("Then the subscriber does not receive it", func() {
					select {
					case u := <-ch:
						t.Fatalf("unexpected delivery: %+v", u)
					default:
					}
				})
			})

			convey.Convey("And when shutting down", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()

				err := b.Shutdown(shutdownCtx)

				convey.Convey("Then it should shutdown gracefully", func() {
					convey.So(err, convey.ShouldBeNil)
				})
			})
		})

		convey.Convey("When the bus closes", func() {
			b := worker.NewBroadcaster(bus, registry)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			go b.Run(ctx)
			time.Sleep(10 * time.Millisecond)

			bus.close()
			time.Sleep(20 * time.Millisecond)

			convey.Convey("Then shutdown returns immediately", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
				defer shutdownCancel()
				convey.So(b.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})
	})
}

func TestBroadcasterPool(t *testing.T) {
	convey.Convey("Given a broadcaster pool", t, func() {
		_ = logging.Init()

		registry := worker.NewRegistry()

		convey.Convey("When creating a pool with default count", func() {
			pool := worker.NewPool(0, newMockBus(), registry)

			convey.Convey("Then it should be created successfully", func() {
				convey.So(pool, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When a pool drains a real queue", func() {
			q := queue.NewInMemoryQueue(queue.WithCapacity(100))
			pool := worker.NewPool(2, q, registry)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			pool.Start(ctx)
			time.Sleep(10 * time.Millisecond)

			ch, unsub := registry.Subscribe("party-1")
			defer unsub()

			convey.Convey("And updates are published", func() {
				for slot := 1; slot <= 5; slot++ {
					ok := q.Enqueue(ctx, model.Update{
						Type:    model.UpdateFactConfirmed,
						PartyID: "party-1",
						Slot:    slot,
					})
					convey.So(ok, convey.ShouldBeTrue)
				}

				convey.Convey("Then the subscriber receives all of them", func() {
					received := 0
					timeout := time.After(time.Second)
					for received < 5 {
						select {
						case <-ch:
							received++
						case <-timeout:
							t.Fatalf("only %d of 5 updates delivered", received)
						}
					}
					convey.So(received, convey.ShouldEqual, 5)
				})
			})

			convey.Convey("And when stopping the pool", func() {
				pool.Stop()

				convey.Convey("Then stopping again is harmless", func() {
					convey.So(pool.Stop, convey.ShouldNotPanic)
				})
			})
		})
	})
}

func TestSlowSubscriber(t *testing.T) {
	convey.Convey("Given a subscriber with a tiny buffer", t, func() {
		_ = logging.Init()

		bus := newMockBus()
		registry := worker.NewRegistry(worker.WithSubscriberBuffer(1))
		b := worker.NewBroadcaster(bus, registry)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go b.Run(ctx)
		time.Sleep(10 * time.Millisecond)

		ch, unsub := registry.Subscribe("party-1")
		defer unsub()

		convey.Convey("When more updates arrive than the buffer holds", func() {
			for slot := 1; slot <= 10; slot++ {
				bus.push(worker.Update{Type: model.UpdateFactConfirmed, PartyID: "party-1", Slot: slot})
			}
			time.Sleep(50 * time.Millisecond)

			convey.Convey("Then the excess is dropped, not blocking the broadcaster", func() {
				received := 0
			drain:
				for {
					select {
					case <-ch:
						received++
					default:
						break drain
					}
				}
				convey.So(received, convey.ShouldBeGreaterThan, 0)
				convey.So(received, convey.ShouldBeLessThan, 10)
			})
		})
	})
}
