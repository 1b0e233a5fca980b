package bootstrap

import (
	"fmt"

	"hyaluron-watch/internal/board"
	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/services"
	"hyaluron-watch/internal/domain/services/detection"
	"hyaluron-watch/internal/evidence"
	"hyaluron-watch/internal/infrastructure/cache"
	"hyaluron-watch/internal/infrastructure/database/repository"
	"hyaluron-watch/internal/metrics"
	"hyaluron-watch/internal/notify"
	"hyaluron-watch/internal/sources"
	"hyaluron-watch/internal/sources/search"
	"hyaluron-watch/internal/sources/web"
	"hyaluron-watch/internal/streaming"
	"hyaluron-watch/pkg/logger"
)

// Pipeline is the scrape, detect and enforce stack. Coordinator persists
// suspicious profiles and captures evidence; Analyzer shares its engine but
// only records metrics, for on-demand scoring.
type Pipeline struct {
	Registry    *sources.Registry
	Coordinator *detection.Coordinator
	Analyzer    *detection.Coordinator
	Evidence    *evidence.Service
	Cases       *services.CaseService
	Monitor     *services.Monitor
	Scans       *services.LockedRunner
	Scheduler   *services.Scheduler
}

// SetupScrapers registers every scraper in a fixed order. Scrapers without
// configuration register disabled.
func SetupScrapers(cfg config.ScraperConfig, log *logger.Logger) (*sources.Registry, error) {
	client := sources.NewHTTPClient(cfg, log)
	registry := sources.NewRegistry(log)

	scrapers := []sources.Scraper{
		search.NewCustomSearchScraper(client, cfg.CustomSearch, log),
		web.NewWebsiteScraper(client, cfg.Websites, log),
	}
	for _, s := range scrapers {
		if err := registry.Register(s); err != nil {
			return nil, fmt.Errorf("failed to register scraper: %w", err)
		}
	}
	return registry, nil
}

// SetupPipeline wires detection, evidence, the board, e-mail and the
// monitor around the shared store
func SetupPipeline(
	cfg *config.Config,
	store *repository.Store,
	redisCache *cache.RedisCache,
	bus *streaming.EventBus,
	m *metrics.Metrics,
	log *logger.Logger,
) (*Pipeline, error) {
	registry, err := SetupScrapers(cfg.Scraper, log)
	if err != nil {
		return nil, err
	}

	shots := evidence.NewService(cfg.Screenshot, store, m.SetBreakerState, log)
	collab := detection.Collaborators{
		Persistence: store,
		Publisher:   bus,
		Recorder:    m,
	}
	if shots.Enabled() {
		collab.Evidence = shots
	} else {
		log.Warn().Msg("screenshot capture disabled, suspicious profiles are stored without evidence")
	}

	coordinator, err := detection.NewCoordinatorFromConfig(cfg.Detection, collab, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build detection coordinator: %w", err)
	}
	analyzer, err := detection.NewCoordinator(
		coordinator.Engine(),
		coordinator.Threshold(),
		detection.Collaborators{Recorder: m},
		log,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build analyzer: %w", err)
	}

	var sender notify.Sender
	if cfg.Email.Enabled {
		sender = notify.NewSMTPSender(cfg.Email)
	}

	cases := services.NewCaseService(services.CaseDeps{
		Store:     store,
		Board:     board.NewClient(cfg.Board, m.SetBreakerState, log),
		Mailer:    notify.NewNotifier(cfg.Email, sender, log),
		Publisher: bus,
		Recorder:  m,
		Locations: coordinator.Engine().Extractor(),
	}, log)

	monitor := services.NewMonitor(cfg.Monitor, cfg.Scraper.SearchTerms, services.MonitorDeps{
		Registry:   registry,
		Analyzer:   coordinator,
		Cases:      cases,
		SearchLogs: store,
		Recorder:   m,
		Status:     redisCache,
	}, log)

	return &Pipeline{
		Registry:    registry,
		Coordinator: coordinator,
		Analyzer:    analyzer,
		Evidence:    shots,
		Cases:       cases,
		Monitor:     monitor,
		Scans:       services.NewLockedRunner(monitor, redisCache, cfg.Monitor.LockTTL, log),
		Scheduler:   services.NewScheduler(monitor, cases, redisCache, cfg.Monitor, log),
	}, nil
}
