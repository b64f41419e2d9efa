package engine

import (
	"github.com/xela07ax/strictgate/internal/integrity"
)

// RegionLookup отображает идентификатор клиента (обычно IP) в ключ региона.
// В проде сюда подключается geo-IP база; алгоритм отображения — внешняя
// зависимость, ядро фиксирует только контракт.
type RegionLookup interface {
	Lookup(clientIdentifier string) (integrity.Region, bool)
}

// RegionLookupFunc — адаптер функции под интерфейс RegionLookup.
type RegionLookupFunc func(clientIdentifier string) (integrity.Region, bool)

func (f RegionLookupFunc) Lookup(clientIdentifier string) (integrity.Region, bool) {
	return f(clientIdentifier)
}

// GeoRouter выбирает регион обслуживания по валидированной конфигурации.
// Конфигурация иммутабельна, роутер не держит изменяемого состояния.
type GeoRouter struct {
	cfg    integrity.GeoRoutingConfig
	lookup RegionLookup
}

func NewGeoRouter(cfg integrity.GeoRoutingConfig, lookup RegionLookup) *GeoRouter {
	return &GeoRouter{cfg: cfg, lookup: lookup}
}

// NearestRegion возвращает регион для клиента. Если lookup не дал ответа,
// регион не сконфигурирован или выключен — откатываемся на первичный.
func (g *GeoRouter) NearestRegion(clientIdentifier string) integrity.RegionConfig {
	if g.lookup != nil {
		if region, ok := g.lookup.Lookup(clientIdentifier); ok {
			if rc, found := g.RegionConfig(region); found && rc.IsActive {
				return rc
			}
		}
	}
	return g.PrimaryRegion()
}

// RegionConfig ищет конфигурацию конкретного региона.
func (g *GeoRouter) RegionConfig(region integrity.Region) (integrity.RegionConfig, bool) {
	for _, rc := range g.cfg.Regions() {
		if rc.Region == region {
			return rc, true
		}
	}
	return integrity.RegionConfig{}, false
}

// PrimaryRegion всегда разрешим: инвариант GeoRoutingConfig гарантирует,
// что первичный регион присутствует в списке.
func (g *GeoRouter) PrimaryRegion() integrity.RegionConfig {
	rc, _ := g.RegionConfig(g.cfg.PrimaryRegion)
	return rc
}

// FailoverRegion сканирует регионы в порядке объявления и возвращает первый
// АКТИВНЫЙ с отличным от текущего идентификатором; nil — если failover
// выключен или альтернативы нет.
func (g *GeoRouter) FailoverRegion(current integrity.Region) *integrity.RegionConfig {
	if !g.cfg.FailoverEnabled {
		return nil
	}
	for _, rc := range g.cfg.Regions() {
		if rc.Region != current && rc.IsActive {
			out := rc
			return &out
		}
	}
	return nil
}
