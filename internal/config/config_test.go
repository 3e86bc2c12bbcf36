package config_test

import (
	"testing"

	"github.com/okian/rumble/internal/config"
	"github.com/okian/rumble/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.UpdateBusSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.BroadcasterCount, convey.ShouldEqual, 2)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
			convey.So(cfg.SubscriberBuffer, convey.ShouldEqual, 64)
			convey.So(cfg.MaxStandingsLimit, convey.ShouldEqual, 100)
		})

		convey.Convey("And the default weight table should validate", func() {
			convey.So(cfg.ScoringWeights().Validate(), convey.ShouldBeNil)
			convey.So(cfg.Weights["rumble_winner"], convey.ShouldEqual, 50)
			convey.So(cfg.NoShowPenalty, convey.ShouldBeLessThan, 0)
		})
	})
}

func TestConfig_ScoringWeights(t *testing.T) {
	convey.Convey("Given a config with a custom weight table", t, func() {
		cfg := config.New()
		cfg.Weights["rumble_winner"] = 100
		cfg.NoShowPenalty = -25

		convey.Convey("When converting to the domain type", func() {
			w := cfg.ScoringWeights()

			convey.Convey("Then the kinds and penalty carry over", func() {
				convey.So(w.Points[model.KindRumbleWinner], convey.ShouldEqual, 100)
				convey.So(w.Points[model.KindChaos], convey.ShouldEqual, 10)
				convey.So(w.NoShowPenalty, convey.ShouldEqual, -25)
			})
		})
	})
}

func TestConfig_DivisionRoster(t *testing.T) {
	convey.Convey("Given a config without a roster", t, func() {
		cfg := config.New()

		convey.Convey("Then the domain roster is nil", func() {
			convey.So(cfg.DivisionRoster(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a configured roster", t, func() {
		cfg := config.New()
		cfg.Roster = map[string][]string{
			"mens":   {"Tank", "Nova"},
			"womens": {"Luna"},
		}

		convey.Convey("Then divisions map to their wrestlers", func() {
			roster := cfg.DivisionRoster()
			convey.So(roster, convey.ShouldHaveLength, 2)
			convey.So(roster[model.DivisionMens], convey.ShouldResemble, []string{"Tank", "Nova"})
			convey.So(roster[model.DivisionWomens], convey.ShouldResemble, []string{"Luna"})
		})
	})
}
