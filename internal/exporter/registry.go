package exporter

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/prometheus/common/model"
	log "github.com/sirupsen/logrus"
)

// CategoryLabel is the only label carried by AXAPI gauges.
const CategoryLabel = "category"

// NormalizeName turns an AXAPI field name into a metric name by replacing
// hyphens with underscores ("bytes-in" becomes "bytes_in").
func NormalizeName(field string) string {
	return strings.ReplaceAll(field, "-", "_")
}

// DisplayCategory strips one leading underscore from an api_name ("_vport1" becomes "vport1").
func DisplayCategory(apiName string) string {
	return strings.TrimPrefix(apiName, "_")
}

// categoryIndex holds the gauges one category has reported. Its registry
// contains the same collectors as the global one, restricted to the category,
// so gathering it yields exactly the families to serialize for a scrape.
type categoryIndex struct {
	registry *prometheus.Registry
	gauges   map[string]*prometheus.GaugeVec
}

// MetricRegistry maps AXAPI stat fields to long-lived gauges.
//
// A gauge is created once per normalized field name for the life of the
// process and shared by every category reporting that name; each category
// writes its own "category" label value. Gauges are never removed.
//
// One mutex covers get-or-create, value updates and serialization, so a
// scrape always serializes a consistent snapshot and two first-time creations
// of the same name cannot both reach registration.
type MetricRegistry struct {
	mu         sync.Mutex
	global     *prometheus.Registry
	gauges     map[string]*prometheus.GaugeVec
	categories map[string]*categoryIndex
}

// NewMetricRegistry creates an empty registry.
func NewMetricRegistry() *MetricRegistry {
	return &MetricRegistry{
		global:     prometheus.NewRegistry(),
		gauges:     make(map[string]*prometheus.GaugeVec),
		categories: make(map[string]*categoryIndex),
	}
}

// Record sets every field of stats on its gauge under category, then returns
// the text exposition of all gauges indexed under category, one fragment per
// gauge, sorted by metric name.
//
// Values overwrite previous ones. Fields whose normalized name is not a valid
// classic Prometheus metric name ([a-zA-Z_:][a-zA-Z0-9_:]*) are logged and
// skipped, so no name ever needs escaping in the text output. Recording an empty map creates nothing
// and returns what the category already holds.
func (r *MetricRegistry) Record(category string, stats map[string]float64) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fields := make([]string, 0, len(stats))
	for field := range stats {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		name := NormalizeName(field)
		vec, err := r.getOrCreate(name, category, field)
		if err != nil {
			log.WithFields(log.Fields{"category": category, "field": field}).Warnf("Skipping stat field: %v", err)
			continue
		}
		gauge, err := vec.GetMetricWithLabelValues(category)
		if err != nil {
			log.WithFields(log.Fields{"category": category, "field": field}).Warnf("Skipping stat field: %v", err)
			continue
		}
		gauge.Set(stats[field])

		if err := r.index(category, name, vec); err != nil {
			return nil, err
		}
	}

	return r.serialize(category)
}

// getOrCreate returns the gauge for name, registering a new one on first use.
// Must be called with r.mu held.
func (r *MetricRegistry) getOrCreate(name, category, field string) (*prometheus.GaugeVec, error) {
	if vec, ok := r.gauges[name]; ok {
		return vec, nil
	}
	if !model.IsValidLegacyMetricName(name) {
		return nil, fmt.Errorf("invalid metric name %q", name)
	}

	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: name,
		Help: fmt.Sprintf("api-%s key-%s", category, field),
	}, []string{CategoryLabel})
	if err := r.global.Register(vec); err != nil {
		return nil, fmt.Errorf("register gauge %q: %w", name, err)
	}

	r.gauges[name] = vec
	log.WithFields(log.Fields{"metric": name, "category": category}).Debug("Created gauge")
	return vec, nil
}

// index adds vec to the category's index. Must be called with r.mu held.
func (r *MetricRegistry) index(category, name string, vec *prometheus.GaugeVec) error {
	idx, ok := r.categories[category]
	if !ok {
		idx = &categoryIndex{
			registry: prometheus.NewRegistry(),
			gauges:   make(map[string]*prometheus.GaugeVec),
		}
		r.categories[category] = idx
	}
	if _, ok := idx.gauges[name]; ok {
		return nil
	}
	if err := idx.registry.Register(vec); err != nil {
		return fmt.Errorf("index gauge %q under %q: %w", name, category, err)
	}
	idx.gauges[name] = vec
	return nil
}

// serialize encodes the category's gauges. Must be called with r.mu held.
func (r *MetricRegistry) serialize(category string) ([]string, error) {
	idx, ok := r.categories[category]
	if !ok {
		return nil, nil
	}

	families, err := idx.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather category %q: %w", category, err)
	}

	fragments := make([]string, 0, len(families))
	for _, mf := range families {
		fragment, err := encodeFamily(mf)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, fragment)
	}
	return fragments, nil
}

func encodeFamily(mf *dto.MetricFamily) (string, error) {
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	if err := enc.Encode(mf); err != nil {
		return "", fmt.Errorf("encode %s: %w", mf.GetName(), err)
	}
	return buf.String(), nil
}

// Gauge returns the gauge registered for a normalized name.
func (r *MetricRegistry) Gauge(name string) (*prometheus.GaugeVec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.gauges[name]
	return vec, ok
}

// CategoryGauge returns the gauge indexed under category for a normalized name.
func (r *MetricRegistry) CategoryGauge(category, name string) (*prometheus.GaugeVec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.categories[category]
	if !ok {
		return nil, false
	}
	vec, ok := idx.gauges[name]
	return vec, ok
}

// Len returns the number of gauges created since start.
func (r *MetricRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gauges)
}

// Categories returns the categories that have reported at least one field, sorted.
func (r *MetricRegistry) Categories() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.categories))
	for name := range r.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Gather implements prometheus.Gatherer over every gauge and category.
func (r *MetricRegistry) Gather() ([]*dto.MetricFamily, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.global.Gather()
}
