package source

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"recipe-autofind/internal/infrastructure/metrics"
	"recipe-autofind/internal/pkg/common"

	"go.uber.org/zap"
)

// site 單一信任站點的擷取策略
type site interface {
	Name() string
	Trust() float64
	BaseURL() string
	Fetch(ctx context.Context, c *trustedClient, sq common.StructuredQuery, class common.Classification, opts fetchOptions) ([]common.FetchedSource, error)
}

type fetchOptions struct {
	limit       int
	maxExcerpt  int
	maxSnapshot int
}

// Config 來源擷取設定
type Config struct {
	Enabled         []string
	Timeout         time.Duration
	MaxRetries      int
	UserAgent       string
	RatePerSecond   float64
	MaxKnown        int
	MaxVague        int
	MaxExcerptChars int
	MaxSnapshotSize int
	// BaseURLs 覆寫站點根網址，key 為站點名稱
	BaseURLs map[string]string
}

// DefaultConfig 預設設定
func DefaultConfig() Config {
	return Config{
		Enabled:         []string{wikipediaName, britannicaName, wikibooksName},
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		UserAgent:       "recipe-autofind/1.0",
		RatePerSecond:   2,
		MaxKnown:        1,
		MaxVague:        3,
		MaxExcerptChars: 2000,
		MaxSnapshotSize: 20000,
	}
}

// ParseEnabled 解析逗號分隔的站點清單
func ParseEnabled(list string) []string {
	var out []string
	for _, name := range strings.Split(list, ",") {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Fetcher 從白名單站點擷取參考來源
type Fetcher struct {
	cfg     Config
	sites   []site
	client  *trustedClient
	metrics *metrics.Metrics
}

// NewFetcher 建立擷取器，未知站點名稱視為設定錯誤
func NewFetcher(cfg Config, m *metrics.Metrics) (*Fetcher, error) {
	baseURL := func(name, def string) string {
		if u, ok := cfg.BaseURLs[name]; ok && u != "" {
			return strings.TrimRight(u, "/")
		}
		return def
	}

	var sites []site
	seen := make(map[string]bool)
	for _, name := range cfg.Enabled {
		if seen[name] {
			continue
		}
		seen[name] = true
		switch name {
		case wikipediaName:
			sites = append(sites, &wikipediaSite{baseURL: baseURL(name, wikipediaBaseURL)})
		case britannicaName:
			sites = append(sites, newBritannicaSite(baseURL(name, britannicaBaseURL)))
		case wikibooksName:
			sites = append(sites, newWikibooksSite(baseURL(name, wikibooksBaseURL)))
		default:
			return nil, fmt.Errorf("unknown source site %q", name)
		}
	}

	hosts := make([]string, 0, len(sites))
	for _, s := range sites {
		u, err := url.Parse(s.BaseURL())
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid base url for %s: %q", s.Name(), s.BaseURL())
		}
		hosts = append(hosts, u.Host)
	}

	return &Fetcher{
		cfg:     cfg,
		sites:   sites,
		client:  newTrustedClient(hosts, cfg.Timeout, cfg.MaxRetries, cfg.UserAgent, cfg.RatePerSecond),
		metrics: m,
	}, nil
}

// Sites 啟用中的站點名稱
func (f *Fetcher) Sites() []string {
	names := make([]string, len(f.sites))
	for i, s := range f.sites {
		names[i] = s.Name()
	}
	return names
}

// FetchTrustedSources 依序向各站點擷取，單站失敗只記錄不中斷；
// 結果依網址去重並按信任分數由高到低排序
func (f *Fetcher) FetchTrustedSources(ctx context.Context, sq common.StructuredQuery, class common.Classification) []common.FetchedSource {
	opts := fetchOptions{
		limit:       f.cfg.MaxKnown,
		maxExcerpt:  f.cfg.MaxExcerptChars,
		maxSnapshot: f.cfg.MaxSnapshotSize,
	}
	if class == common.ClassVagueDescription {
		opts.limit = f.cfg.MaxVague
	}
	if opts.limit <= 0 {
		opts.limit = 1
	}

	var all []common.FetchedSource
	seen := make(map[string]bool)
	for _, s := range f.sites {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		found, err := s.Fetch(ctx, f.client, sq, class, opts)
		if err != nil {
			f.metrics.SourceFailed(s.Name())
			common.LogWarn("來源擷取失敗",
				zap.String("site", s.Name()),
				zap.String("dish", sq.DishName),
				zap.Error(err))
		}

		added := 0
		for _, src := range found {
			key := strings.TrimRight(src.URL, "/")
			if src.URL == "" || seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, src)
			added++
		}
		f.metrics.SourcesFetched(s.Name(), added)
		common.LogDebug("來源擷取完成",
			zap.String("site", s.Name()),
			zap.Int("count", added),
			zap.Duration("duration", time.Since(start)))
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].TrustScore > all[j].TrustScore
	})
	return all
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
