package common

const (
	ComponentDownloader         = "downloader"
	ComponentLogFetcher         = "log-fetcher"
	ComponentSyncManager        = "sync-manager"
	ComponentReorgDetector      = "reorg-detector"
	ComponentMaintenance        = "maintenance"
	ComponentIndexerCoordinator = "indexer-coordinator"
	ComponentEntityStore        = "entity-store"
	ComponentDropIndexer        = "drop-indexer"
	ComponentTokenReader        = "token-reader"
	ComponentMetrics            = "metrics"
)

var AllComponents = map[string]struct{}{
	ComponentDownloader:         {},
	ComponentLogFetcher:         {},
	ComponentSyncManager:        {},
	ComponentReorgDetector:      {},
	ComponentMaintenance:        {},
	ComponentIndexerCoordinator: {},
	ComponentEntityStore:        {},
	ComponentDropIndexer:        {},
	ComponentTokenReader:        {},
	ComponentMetrics:            {},
}
