package ibcommission

import (
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/jiaming2012/backoffice/src/models"
)

type ContractSizer interface {
	GetContractSize(symbol string) float64
}

type Config struct {
	// MaxDepth bounds the upline walk. Zero means models.DefaultCommissionMaxLevels.
	MaxDepth int
	// DefaultPlan is used when neither the IB's plan nor a stored default plan exists.
	DefaultPlan *models.CommissionPlan
}

// Service pays per-level commission to the IB upline of a trader and manages IB onboarding.
type Service struct {
	db                models.ICommissionStore
	sizer             ContractSizer
	maxDepth          int
	defaultPlan       *models.CommissionPlan
	now               func() time.Time
	commissionCounter metric.Int64Counter
}

func NewService(db models.ICommissionStore, sizer ContractSizer, cfg Config) *Service {
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = models.DefaultCommissionMaxLevels
	}

	counter, err := otel.Meter("ibcommission").Int64Counter("ibcommission.levels", metric.WithDescription("waterfall levels by outcome"))
	if err != nil {
		log.Warnf("ibcommission: failed to create level counter: %v", err)
	}

	return &Service{
		db:                db,
		sizer:             sizer,
		maxDepth:          maxDepth,
		defaultPlan:       cfg.DefaultPlan,
		now:               time.Now,
		commissionCounter: counter,
	}
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// NewConfig builds a Config from the commission section of the backoffice config.
func NewConfig(c models.CommissionConfigYAML) (Config, error) {
	plan, err := c.DefaultPlan.ToPlan()
	if err != nil {
		return Config{}, err
	}

	return Config{MaxDepth: c.MaxDepth, DefaultPlan: plan}, nil
}
