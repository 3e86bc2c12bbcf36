package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/okian/rumble/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			// Clear any existing environment variables
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.UpdateBusSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.BroadcasterCount, convey.ShouldEqual, 2)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.SubscriberBuffer, convey.ShouldEqual, 64)
				convey.So(cfg.MaxStandingsLimit, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("RUMBLE_ADDR", ":8080")
			_ = os.Setenv("RUMBLE_UPDATE_BUS_SIZE", "5000")
			_ = os.Setenv("RUMBLE_BROADCASTER_COUNT", "4")
			_ = os.Setenv("RUMBLE_DEDUPE_SIZE", "25000")
			_ = os.Setenv("RUMBLE_MAX_STANDINGS_LIMIT", "50")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.UpdateBusSize, convey.ShouldEqual, 5000)
				convey.So(cfg.BroadcasterCount, convey.ShouldEqual, 4)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 25000)
				convey.So(cfg.MaxStandingsLimit, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
update_bus_size: 20000
broadcaster_count: 3
dedupe_size: 60000
weights:
  match_winner: 20
  rumble_winner: 100
  entrant: 5
  first_eliminated: 15
  most_eliminations: 25
  longest_duration: 25
  final_four: 20
  chaos: 10
no_show_penalty: -20
roster:
  mens: ["Tank", "Nova"]
  womens: ["Luna", "Raven"]
matches: ["undercard-1"]
chaos_props: ["chair-shot"]
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RUMBLE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.UpdateBusSize, convey.ShouldEqual, 20000)
				convey.So(cfg.BroadcasterCount, convey.ShouldEqual, 3)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 60000)
				convey.So(cfg.Weights["rumble_winner"], convey.ShouldEqual, 100)
				convey.So(cfg.NoShowPenalty, convey.ShouldEqual, -20)
				convey.So(cfg.Roster["mens"], convey.ShouldResemble, []string{"Tank", "Nova"})
				convey.So(cfg.Matches, convey.ShouldResemble, []string{"undercard-1"})
				convey.So(cfg.ChaosProps, convey.ShouldResemble, []string{"chair-shot"})
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
update_bus_size: 20000
broadcaster_count: 3
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RUMBLE_CONFIG", tmpFile)
			_ = os.Setenv("RUMBLE_ADDR", ":8080")           // This should override the file
			_ = os.Setenv("RUMBLE_BROADCASTER_COUNT", "8") // This should override the file
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")          // Overridden by env
				convey.So(cfg.UpdateBusSize, convey.ShouldEqual, 20000)   // From file
				convey.So(cfg.BroadcasterCount, convey.ShouldEqual, 8)    // Overridden by env
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)     // From defaults
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			invalidYaml := `invalid: yaml: content: [`
			tmpFile := createTempConfigFile(invalidYaml)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RUMBLE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("RUMBLE_CONFIG", "/non/existent/file.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("RUMBLE_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the configured weight table is broken", func() {
			yamlContent := `
weights:
  rumble_winner: -50
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RUMBLE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails before any party can use it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with partial YAML file", func() {
			yamlContent := `
addr: ":9090"
broadcaster_count: 6
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RUMBLE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should merge with defaults for missing fields", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")         // From file
				convey.So(cfg.BroadcasterCount, convey.ShouldEqual, 6)   // From file
				convey.So(cfg.UpdateBusSize, convey.ShouldEqual, 10_000) // From defaults
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)    // From defaults
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("RUMBLE_UPDATE_BUS_SIZE", "invalid")
			_ = os.Setenv("RUMBLE_BROADCASTER_COUNT", "not_a_number")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given config loader edge cases", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with various addr formats", func() {
			_ = os.Setenv("RUMBLE_ADDR", "localhost:8080")
			_ = os.Setenv("RUMBLE_ADDR", "0.0.0.0:9090")
			_ = os.Setenv("RUMBLE_ADDR", "[::1]:8080")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then the last one wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, "[::1]:8080")
			})
		})

		convey.Convey("When loading config with YAML file containing comments", func() {
			yamlContent := `
# Party night settings
addr: ":9090"  # Inline comment
update_bus_size: 20000
# Another comment
dedupe_size: 60000
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RUMBLE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should parse YAML with comments", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.UpdateBusSize, convey.ShouldEqual, 20000)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 60000)
			})
		})

		convey.Convey("When loading config with YAML file containing empty addr", func() {
			yamlContent := `
addr: ""
update_bus_size: 20000
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("RUMBLE_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return validation error for empty addr", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"RUMBLE_CONFIG",
		"RUMBLE_ADDR",
		"RUMBLE_UPDATE_BUS_SIZE",
		"RUMBLE_BROADCASTER_COUNT",
		"RUMBLE_DEDUPE_SIZE",
		"RUMBLE_SUBSCRIBER_BUFFER",
		"RUMBLE_MAX_STANDINGS_LIMIT",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "rumble-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
