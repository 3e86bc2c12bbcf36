package service_test

import (
	"context"
	"testing"
	"time"

	service "github.com/okian/rumble/internal/app"
	"github.com/okian/rumble/internal/domain/lifecycle"
	"github.com/okian/rumble/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// TestServiceIntegration runs a full party end to end: predictions close,
// facts land, derived categories settle, the winner finalizes the match and
// the standings come out in order.
func TestServiceIntegration(t *testing.T) {
	Convey("Given a party with four participants", t, func() {
		svc := service.New(
			service.WithBusSize(1000),
			service.WithBroadcasterCount(2),
			service.WithDedupeSize(500),
		)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		id, err := svc.CreateParty(ctx, testSetup())
		So(err, ShouldBeNil)

		mens := model.DivisionMens
		winner := model.Category{Kind: model.KindRumbleWinner, Division: mens}
		firstOut := model.Category{Kind: model.KindFirstEliminated, Division: mens}

		// Picks before the bell.
		picks := []model.Prediction{
			{ParticipantID: "alice", Category: winner, Value: "Tank"},
			{ParticipantID: "alice", Category: firstOut, Value: "Vex"},
			{ParticipantID: "alice", Category: model.Category{Kind: model.KindFinalFour, Division: mens, Slot: 1}, Value: "Tank"},
			{ParticipantID: "bob", Category: winner, Value: "Ghost"},
			{ParticipantID: "carol", Category: model.Category{Kind: model.KindMatchWinner, Prop: "undercard-1"}, Value: "Rey"},
			{ParticipantID: "carol", Category: model.Category{Kind: model.KindChaos, Prop: "chair-shot"}, Value: "yes"},
			{ParticipantID: "dave", Category: model.Category{Kind: model.KindEntrant, Division: mens, Slot: 1}, Value: "Tank"},
		}
		for _, p := range picks {
			So(svc.SubmitPrediction(ctx, id, p), ShouldBeNil)
		}

		Convey("When the match plays out", func() {
			// Six entries; Ghost stays in the parking lot.
			entries := []struct {
				slot     int
				wrestler string
			}{
				{1, "Tank"}, {2, "Nova"}, {3, "Flash"}, {4, "Vex"}, {5, "Big Red"}, {6, "The Giant"},
			}
			for _, e := range entries {
				So(svc.ConfirmEntry(ctx, id, "entry-"+e.wrestler, mens, e.slot, e.wrestler, minute(e.slot)), ShouldBeNil)
			}

			// Vex goes out first, thrown by Tank.
			So(svc.ConfirmElimination(ctx, id, "elim-1", mens, 4, 1, minute(10)), ShouldBeNil)

			Convey("Then first-eliminated resolves immediately", func() {
				rank, err := svc.ParticipantRank(ctx, id, "alice")
				So(err, ShouldBeNil)
				So(rank.Points, ShouldEqual, 15)

				results, err := svc.Results(ctx, id)
				So(err, ShouldBeNil)
				So(findResult(results, firstOut).Value, ShouldEqual, "Vex")
				So(findResult(results, firstOut).Source, ShouldEqual, model.SourceDerived)
			})

			Convey("And a corrected elimination rolls the scores back", func() {
				// Host fat-fingered it: Flash went out first, not Vex.
				So(svc.ResetElimination(ctx, id, "reset-1", mens, 4), ShouldBeNil)

				rank, err := svc.ParticipantRank(ctx, id, "alice")
				So(err, ShouldBeNil)
				So(rank.Points, ShouldEqual, 0)

				So(svc.ConfirmElimination(ctx, id, "elim-2", mens, 3, 1, minute(10)), ShouldBeNil)

				results, err := svc.Results(ctx, id)
				So(err, ShouldBeNil)
				So(findResult(results, firstOut).Value, ShouldEqual, "Flash")

				// Alice's Vex pick is now resolved wrong: still zero.
				rank, err = svc.ParticipantRank(ctx, id, "alice")
				So(err, ShouldBeNil)
				So(rank.Points, ShouldEqual, 0)
			})

			Convey("And the rest of the card settles everything", func() {
				So(svc.ConfirmElimination(ctx, id, "elim-3", mens, 3, 1, minute(11)), ShouldBeNil)

				// Undercard and chaos calls.
				So(svc.DeclareResult(ctx, id, "declare-1",
					model.Category{Kind: model.KindMatchWinner, Prop: "undercard-1"}, "Rey", minute(12)), ShouldBeNil)
				So(svc.DeclareResult(ctx, id, "declare-2",
					model.Category{Kind: model.KindChaos, Prop: "chair-shot"}, "yes", minute(13)), ShouldBeNil)

				// Only six entrants showed, so the host freezes the final four.
				So(svc.FreezeFinalFour(ctx, id, "freeze-1", mens,
					[]string{"Tank", "Nova", "Big Red", "The Giant"}, minute(55)), ShouldBeNil)

				// Tank wins at the hour.
				So(svc.ConfirmRumbleWinner(ctx, id, "winner-1", mens, "Tank", minute(60)), ShouldBeNil)

				Convey("Then every category has its answer", func() {
					results, err := svc.Results(ctx, id)
					So(err, ShouldBeNil)

					So(findResult(results, winner).Value, ShouldEqual, "Tank")
					So(findResult(results, model.Category{Kind: model.KindMostEliminations, Division: mens}).Value, ShouldEqual, "Tank")
					So(findResult(results, model.Category{Kind: model.KindLongestDuration, Division: mens}).Value, ShouldEqual, "Tank")
					So(findResult(results, model.Category{Kind: model.KindEntrant, Division: mens, Slot: 1}).Value, ShouldEqual, "Tank")
					So(findResult(results, model.Category{Kind: model.KindFinalFour, Division: mens, Slot: 1}).Members, ShouldContain, "Nova")
				})

				Convey("And the standings come out in order", func() {
					// alice: first out 15 + final four 20 + winner 50
					// carol: match winner 20 + chaos 10
					// dave:  entrant slot 1 hit, 5
					// bob:   Ghost no-showed, -10
					top, err := svc.Standings(ctx, id, 10)
					So(err, ShouldBeNil)
					So(top, ShouldHaveLength, 4)

					So(top[0].ParticipantID, ShouldEqual, "alice")
					So(top[0].Points, ShouldEqual, 85)
					So(top[1].ParticipantID, ShouldEqual, "carol")
					So(top[1].Points, ShouldEqual, 30)
					So(top[2].ParticipantID, ShouldEqual, "dave")
					So(top[2].Points, ShouldEqual, 5)
					So(top[3].ParticipantID, ShouldEqual, "bob")
					So(top[3].Points, ShouldEqual, -10)
				})

				Convey("And resetting the winner reopens the match", func() {
					So(svc.ResetResult(ctx, id, "reset-w", winner), ShouldBeNil)

					rank, err := svc.ParticipantRank(ctx, id, "alice")
					So(err, ShouldBeNil)
					So(rank.Points, ShouldEqual, 35) // winner points gone, the rest stands

					// The corrected winner lands with the same end-of-match machinery.
					So(svc.ConfirmRumbleWinner(ctx, id, "winner-2", mens, "Nova", minute(61)), ShouldBeNil)

					rank, err = svc.ParticipantRank(ctx, id, "alice")
					So(err, ShouldBeNil)
					So(rank.Points, ShouldEqual, 35) // her Tank pick is wrong this time

					results, err := svc.Results(ctx, id)
					So(err, ShouldBeNil)
					So(findResult(results, winner).Value, ShouldEqual, "Nova")
				})
			})
		})

		Convey("When predictions arrive for a resolved category", func() {
			So(svc.ConfirmEntry(ctx, id, "entry-1", mens, 1, "Tank", minute(1)), ShouldBeNil)
			So(svc.ConfirmEntry(ctx, id, "entry-2", mens, 2, "Nova", minute(2)), ShouldBeNil)
			So(svc.ConfirmElimination(ctx, id, "elim-1", mens, 2, 1, minute(5)), ShouldBeNil)

			err := svc.SubmitPrediction(ctx, id, model.Prediction{
				ParticipantID: "erin", Category: firstOut, Value: "Nova",
			})

			Convey("Then the pick is locked out", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func findResult(results []model.Result, cat model.Category) model.Result {
	for _, r := range results {
		if r.Category == cat {
			return r
		}
	}
	return model.Result{}
}

// TestServiceFinalFourFreeze pins the freeze down as a host declaration:
// it must survive later fact corrections and may replace the derived set.
func TestServiceFinalFourFreeze(t *testing.T) {
	Convey("Given a match whittled down to four", t, func() {
		svc := service.New(service.WithBusSize(1000))
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		names := make([]string, lifecycle.SlotCount)
		for i := range names {
			names[i] = "wrestler-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		}
		id, err := svc.CreateParty(ctx, service.PartySetup{
			Roster: map[model.Division][]string{model.DivisionMens: names},
		})
		So(err, ShouldBeNil)

		mens := model.DivisionMens
		fourSlot1 := model.Category{Kind: model.KindFinalFour, Division: mens, Slot: 1}

		// Erin backs the slot-27 entrant to make the final four.
		So(svc.SubmitPrediction(ctx, id, model.Prediction{
			ParticipantID: "erin", Category: fourSlot1, Value: names[26],
		}), ShouldBeNil)

		for slot := 1; slot <= lifecycle.SlotCount; slot++ {
			So(svc.ConfirmEntry(ctx, id, "", mens, slot, names[slot-1], minute(slot)), ShouldBeNil)
		}
		for slot := 1; slot <= 26; slot++ {
			So(svc.ConfirmElimination(ctx, id, "", mens, slot, 27, minute(31+slot)), ShouldBeNil)
		}

		Convey("Then the final four derives on its own", func() {
			results, err := svc.Results(ctx, id)
			So(err, ShouldBeNil)
			So(findResult(results, fourSlot1).Source, ShouldEqual, model.SourceDerived)
			So(findResult(results, fourSlot1).Members, ShouldContain, names[26])

			rank, err := svc.ParticipantRank(ctx, id, "erin")
			So(err, ShouldBeNil)
			So(rank.Points, ShouldEqual, 20)
		})

		Convey("When the host freezes the set derivation already found", func() {
			So(svc.FreezeFinalFour(ctx, id, "freeze-1", mens,
				[]string{names[26], names[27], names[28], names[29]}, minute(58)), ShouldBeNil)

			Convey("Then the result is recorded as the host's call", func() {
				results, err := svc.Results(ctx, id)
				So(err, ShouldBeNil)
				So(findResult(results, fourSlot1).Source, ShouldEqual, model.SourceDeclared)

				rank, err := svc.ParticipantRank(ctx, id, "erin")
				So(err, ShouldBeNil)
				So(rank.Points, ShouldEqual, 20)
			})

			Convey("And a later elimination correction leaves the freeze standing", func() {
				So(svc.ResetElimination(ctx, id, "reset-26", mens, 26), ShouldBeNil)

				results, err := svc.Results(ctx, id)
				So(err, ShouldBeNil)
				So(findResult(results, fourSlot1).Source, ShouldEqual, model.SourceDeclared)
				So(findResult(results, fourSlot1).Members, ShouldContain, names[26])

				rank, err := svc.ParticipantRank(ctx, id, "erin")
				So(err, ShouldBeNil)
				So(rank.Points, ShouldEqual, 20)

				// The corrected elimination lands without disturbing it either.
				So(svc.ConfirmElimination(ctx, id, "elim-26b", mens, 26, 28, minute(59)), ShouldBeNil)

				results, err = svc.Results(ctx, id)
				So(err, ShouldBeNil)
				So(findResult(results, fourSlot1).Source, ShouldEqual, model.SourceDeclared)
			})
		})

		Convey("When the host rules a disputed set against derivation", func() {
			// The slot-26 elimination is under protest; the host swaps that
			// wrestler in for the slot-27 entrant.
			So(svc.FreezeFinalFour(ctx, id, "freeze-2", mens,
				[]string{names[25], names[27], names[28], names[29]}, minute(58)), ShouldBeNil)

			Convey("Then the frozen set replaces the derived one", func() {
				results, err := svc.Results(ctx, id)
				So(err, ShouldBeNil)
				So(findResult(results, fourSlot1).Source, ShouldEqual, model.SourceDeclared)
				So(findResult(results, fourSlot1).Members, ShouldContain, names[25])
				So(findResult(results, fourSlot1).Members, ShouldNotContain, names[26])

				// Erin's pick missed the ruled set.
				rank, err := svc.ParticipantRank(ctx, id, "erin")
				So(err, ShouldBeNil)
				So(rank.Points, ShouldEqual, 0)
			})
		})
	})
}

// TestServiceConcurrency hammers one party from many goroutines; the
// per-party mutex must keep every invariant intact.
func TestServiceConcurrency(t *testing.T) {
	Convey("Given a party under concurrent load", t, func() {
		svc := service.New(service.WithBusSize(10_000))
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		// A 30-deep roster so every slot can fill.
		names := make([]string, lifecycle.SlotCount)
		for i := range names {
			names[i] = "wrestler-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		}
		id, err := svc.CreateParty(ctx, service.PartySetup{
			Roster: map[model.Division][]string{model.DivisionMens: names},
		})
		So(err, ShouldBeNil)

		Convey("When entries and predictions race", func() {
			done := make(chan error, lifecycle.SlotCount*2)

			for slot := 1; slot <= lifecycle.SlotCount; slot++ {
				go func(slot int) {
					done <- svc.ConfirmEntry(ctx, id, "", model.DivisionMens, slot, names[slot-1], minute(slot))
				}(slot)
				go func(slot int) {
					done <- svc.SubmitPrediction(ctx, id, model.Prediction{
						ParticipantID: "p-" + names[slot-1],
						Category:      model.Category{Kind: model.KindEntrant, Division: model.DivisionMens, Slot: slot},
						Value:         names[slot-1],
					})
				}(slot)
			}
			for i := 0; i < lifecycle.SlotCount*2; i++ {
				So(<-done, ShouldBeNil)
			}

			Convey("Then the ring is fully entered and consistent", func() {
				snap, err := svc.Snapshot(ctx, id, model.DivisionMens)
				So(err, ShouldBeNil)
				So(snap.AllEntered(), ShouldBeTrue)
				So(snap.ActiveCount(), ShouldEqual, lifecycle.SlotCount)
			})

			Convey("And concurrent standings reads never fail", func() {
				readers := 10
				errs := make(chan error, readers)
				for i := 0; i < readers; i++ {
					go func() {
						for j := 0; j < 20; j++ {
							if _, err := svc.Standings(ctx, id, 10); err != nil {
								errs <- err
								return
							}
						}
						errs <- nil
					}()
				}
				for i := 0; i < readers; i++ {
					So(<-errs, ShouldBeNil)
				}
			})
		})
	})
}
