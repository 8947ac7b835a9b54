package kitchen

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Liveboard/internal/domain"
)

const defaultSettingsTTL = 5 * time.Minute

// SettingsSource загружает настройки исключений кухни.
type SettingsSource interface {
	CompileSettings(ctx context.Context) (domain.ExclusionSettings, error)
}

// RulesCache хранит текущие правила и обновляет их не чаще раза в TTL.
//
// Если загрузка настроек упала, остаются предыдущие правила:
// классификатор вызывается на каждой позиции каждого fetch и не должен падать.
type RulesCache struct {
	source SettingsSource
	drinks []string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	rules    *Rules
	loadedAt time.Time
}

// NewRulesCache создаёт кэш правил. До первой загрузки действуют
// только правила по напиткам.
func NewRulesCache(source SettingsSource, drinks []string, ttl time.Duration, logger *slog.Logger) *RulesCache {
	if ttl <= 0 {
		ttl = defaultSettingsTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	if drinks == nil {
		drinks = DefaultDrinks
	}

	return &RulesCache{
		source: source,
		drinks: drinks,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		rules:  NewRules(domain.ExclusionSettings{}, drinks),
	}
}

// Get возвращает актуальные правила, при необходимости перезагружая настройки.
func (c *RulesCache) Get(ctx context.Context) *Rules {
	c.mu.Lock()
	fresh := !c.loadedAt.IsZero() && c.now().Sub(c.loadedAt) < c.ttl
	rules := c.rules
	c.mu.Unlock()

	if fresh || c.source == nil {
		return rules
	}

	settings, err := c.source.CompileSettings(ctx)
	if err != nil {
		c.logger.Warn("failed to load kitchen settings, keeping previous rules", "error", err)
		return rules
	}

	rules = NewRules(settings, c.drinks)

	c.mu.Lock()
	c.rules = rules
	c.loadedAt = c.now()
	c.mu.Unlock()

	c.logger.Debug("kitchen settings loaded",
		"excluded_items", len(settings.ExcludedItems),
		"excluded_categories", len(settings.ExcludedCategories),
	)

	return rules
}
