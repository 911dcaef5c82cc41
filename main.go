package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	scenarios, err := LoadScenarios(getenv("SCENARIO_FILE", ""))
	if err != nil {
		logger.Error("scenario_load_failed", "error", err)
		os.Exit(1)
	}

	archive := NewAlertArchive(getenv("ARCHIVE_FILE", ""))
	perf := NewPerfRecorder(prometheus.DefaultRegisterer)
	store := NewNetworkState(scenarios, archive)
	pipeline := NewIngestionPipeline(store, perf)

	interval := time.Duration(getenvInt("GENERATOR_INTERVAL_SEC", 2)) * time.Second
	samplePct := float64(getenvInt("GENERATOR_SAMPLE_PCT", 30)) / 100
	generator := NewSyntheticGenerator(pipeline, store, interval, samplePct)
	if getenv("GENERATOR_AUTOSTART", "true") == "true" {
		generator.Start()
	}

	apiToken := getenv("API_TOKEN", "")

	app := fiber.New()

	// Simple bearer auth if API_TOKEN is set.
	authMiddleware := func(c *fiber.Ctx) error {
		if apiToken == "" {
			return c.Next()
		}
		if c.Get("Authorization") != "Bearer "+apiToken {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"code":    "unauthorized",
				"message": "Invalid or missing token",
			})
		}
		return c.Next()
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "time": time.Now().UTC()})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/devices", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(DevicesResponse{LastUpdated: time.Now().UnixMilli(), Devices: store.Devices()})
	})

	app.Get("/devices/:id", authMiddleware, func(c *fiber.Ctx) error {
		dev, ok := store.Device(c.Params("id"))
		if !ok {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"code": "not_found", "message": "Device not found"})
		}
		return c.JSON(dev)
	})

	app.Post("/devices", authMiddleware, func(c *fiber.Ctx) error {
		var dev Device
		if err := c.BodyParser(&dev); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"code": "invalid_body", "message": "Invalid request body"})
		}
		dev.ID = strings.TrimSpace(dev.ID)
		if dev.ID == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"code": "missing_id", "message": "id is required"})
		}
		if strings.TrimSpace(dev.Name) == "" {
			dev.Name = dev.ID
		}
		registered := store.RegisterDevice(dev)
		logger.Info("device_registered", "device_id", registered.ID, "class", registered.Class)
		return c.JSON(registered)
	})

	app.Get("/connections", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(store.Connections())
	})

	app.Get("/paths", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(store.Paths())
	})

	app.Get("/kpis/layers", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(store.LayerKPIs())
	})

	app.Get("/alerts", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(AlertsResponse{LastUpdated: time.Now().UnixMilli(), Alerts: store.Alerts()})
	})

	app.Delete("/devices/:name/alerts", authMiddleware, func(c *fiber.Ctx) error {
		removed := store.RemoveAlertsForDevice(c.Params("name"))
		return c.JSON(fiber.Map{"removed": removed})
	})

	app.Get("/alerts/history", authMiddleware, func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 200)
		return c.JSON(fiber.Map{"count": archive.Count(), "alerts": archive.QueryHistory(limit)})
	})

	app.Post("/telemetry/ingest", authMiddleware, func(c *fiber.Ctx) error {
		var records []RawTelemetryRecord
		if err := c.BodyParser(&records); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"code": "invalid_body", "message": "Body must be a JSON array of telemetry records"})
		}
		res := pipeline.IngestBatch(records)
		return c.JSON(IngestResponse{
			Accepted:   true,
			Received:   res.Received,
			Ingested:   res.Ingested,
			Unresolved: res.Unresolved,
			Faulted:    res.Faulted,
			Alerts:     res.Alerts,
			DurationMs: res.Duration.Milliseconds(),
		})
	})

	app.Post("/telemetry/import", authMiddleware, func(c *fiber.Ctx) error {
		stop := perf.TimeAction("import")
		defer stop()

		records, dropped, err := parseImportPayload(c.Body())
		if err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"code": "invalid_import", "message": err.Error()})
		}
		res := pipeline.IngestBatch(records)
		logger.Info("file_imported",
			"received", len(records)+dropped,
			"dropped", dropped,
			"ingested", res.Ingested,
			"duration_ms", res.Duration.Milliseconds(),
		)
		return c.JSON(ImportResponse{
			Accepted:   true,
			Received:   len(records) + dropped,
			Dropped:    dropped,
			Ingested:   res.Ingested,
			Unresolved: res.Unresolved,
			Faulted:    res.Faulted,
			Alerts:     len(res.Alerts),
			DurationMs: res.Duration.Milliseconds(),
		})
	})

	app.Post("/system/reset", authMiddleware, func(c *fiber.Ctx) error {
		stop := perf.TimeAction("reset")
		defer stop()
		store.ResetSystem()
		pipeline.ResetDedup()
		return c.JSON(fiber.Map{"reset": true, "alerts": len(store.Alerts())})
	})

	app.Post("/faults/:scenario", authMiddleware, func(c *fiber.Ctx) error {
		stop := perf.TimeAction("inject_fault")
		defer stop()
		resp, err := store.InjectFault(c.Params("scenario"))
		if err != nil {
			return c.Status(http.StatusNotFound).JSON(fiber.Map{"code": "unknown_scenario", "message": err.Error(), "known": scenarios.Names()})
		}
		return c.JSON(resp)
	})

	app.Post("/generator/start", authMiddleware, func(c *fiber.Ctx) error {
		generator.Start()
		return c.JSON(generator.Status())
	})

	app.Post("/generator/stop", authMiddleware, func(c *fiber.Ctx) error {
		generator.Stop()
		return c.JSON(generator.Status())
	})

	app.Get("/generator/status", authMiddleware, func(c *fiber.Ctx) error {
		return c.JSON(generator.Status())
	})

	addr := getenv("API_ADDR", ":8080")
	logger.Info("api_listening", "addr", addr, "scenarios", scenarios.Names(), "generator_interval", interval.String())
	if err := app.Listen(addr); err != nil {
		logger.Error("api_start_failed", "error", err)
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}
