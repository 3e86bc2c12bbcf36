package simulator

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBuildScript(t *testing.T) {
	Convey("Given a scripted party for 90 guests", t, func() {
		cfg := &Config{Participants: 90, Timeout: time.Second}
		s := buildScript(cfg)

		Convey("Then the roster covers both divisions", func() {
			So(s.party.Roster, ShouldContainKey, "mens")
			So(s.party.Roster, ShouldContainKey, "womens")
			So(s.party.Roster["mens"], ShouldHaveLength, ringSize)
			So(s.party.Roster["mens"][0], ShouldEqual, "mens-wrestler-01")
		})

		Convey("And every guest files four picks per division", func() {
			So(s.predictions, ShouldHaveLength, 90*2*4)
		})

		Convey("And the facts replay both matches in broadcast order", func() {
			So(s.facts, ShouldHaveLength, 2*(ringSize+eliminatedSlots+1))
			So(s.facts[0].Kind, ShouldEqual, "entry")
			So(s.facts[0].Slot, ShouldEqual, 1)
			So(s.facts[ringSize].Kind, ShouldEqual, "elimination")
			So(s.facts[ringSize+eliminatedSlots].Kind, ShouldEqual, "rumble_winner")
			So(s.facts[ringSize+eliminatedSlots].Wrestler, ShouldEqual, wrestlerName("mens", winnerSlot))
		})

		Convey("And no guest contradicts their own picks", func() {
			// A first-eliminated pick sharing a value with a final-four
			// pick would be rejected by the service.
			firstOut := map[string]string{}
			for _, p := range s.predictions {
				if p.Kind == "first_eliminated" {
					firstOut[p.ParticipantID+"/"+p.Division] = p.Value
				}
			}
			for _, p := range s.predictions {
				if p.Kind == "final_four" {
					So(p.Value, ShouldNotEqual, firstOut[p.ParticipantID+"/"+p.Division])
				}
			}
		})

		Convey("And the expected totals follow the script's outcome", func() {
			// Entrant picks always hit, so everyone holds at least those.
			So(s.expected["guest-000"], ShouldEqual, 2*entrantPoints)
			// guest-027 picked the winning slot in both divisions.
			So(s.expected["guest-027"], ShouldEqual, 2*(entrantPoints+rumbleWinnerPoints))
			// guest-025's pick is the first one gone in both divisions.
			So(s.expected["guest-025"], ShouldEqual, 2*(entrantPoints+firstEliminatedPoints))
			// guest-021's final-four pick lands on the slot it named.
			So(s.expected["guest-021"], ShouldEqual, 2*(entrantPoints+finalFourPoints))
		})

		Convey("And every fact carries a command id and a timestamp", func() {
			seen := map[string]bool{}
			for _, f := range s.facts {
				So(f.CommandID, ShouldNotBeEmpty)
				So(seen[f.CommandID], ShouldBeFalse)
				seen[f.CommandID] = true

				_, err := time.Parse(time.RFC3339, f.TS)
				So(err, ShouldBeNil)
			}
		})
	})
}
