package service

import (
	"encoding/json"
	"log/slog"

	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/catalog"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/config"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/health"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/method"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/metric"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/natsclient"
	"github.com/neuronavigatorapp/IntelliLab-GC-ModV2-sub001/runstore"
)

// Dependencies carries the shared collaborators a service constructor may
// need. Fields a given service does not use stay nil.
type Dependencies struct {
	NATSClient      *natsclient.Client
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
	Instrument      config.InstrumentConfig
	Catalog         *catalog.Catalog
	Library         *method.Library
	RunStore        *runstore.Store
	HealthMonitor   *health.Monitor
}

// Constructor builds a service from its raw JSON config section and the
// shared dependencies. Every registered service follows this signature.
type Constructor func(rawConfig json.RawMessage, deps *Dependencies) (Service, error)
