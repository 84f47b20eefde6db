package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"recipe-autofind/internal/pkg/common"
)

const (
	wikipediaName     = "wikipedia"
	wikipediaBaseURL  = "https://en.wikipedia.org"
	wikipediaTrust    = 0.90
	searchOverfetch   = 2
	disambiguationTyp = "disambiguation"
)

// wikipediaSite 透過 MediaWiki 搜尋 API 與 REST 摘要取得條目
type wikipediaSite struct {
	baseURL string
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiSummary struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	Description string `json:"description"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

func (s *wikipediaSite) Name() string    { return wikipediaName }
func (s *wikipediaSite) Trust() float64  { return wikipediaTrust }
func (s *wikipediaSite) BaseURL() string { return s.baseURL }

// searchQuery 知名菜餚直接搜尋菜名；含糊描述加上國家與料理字樣擴大範圍
func (s *wikipediaSite) searchQuery(sq common.StructuredQuery, class common.Classification) string {
	if class != common.ClassVagueDescription {
		return sq.DishName
	}
	parts := []string{}
	if sq.Country != "" {
		parts = append(parts, sq.Country)
	}
	parts = append(parts, sq.Ingredients...)
	parts = append(parts, "dish")
	return strings.Join(parts, " ")
}

// Fetch 知名菜餚先直接取摘要，找不到再退回搜尋
func (s *wikipediaSite) Fetch(ctx context.Context, c *trustedClient, sq common.StructuredQuery, class common.Classification, opts fetchOptions) ([]common.FetchedSource, error) {
	if class == common.ClassKnownRecipe && sq.DishName != "" {
		src, err := s.summary(ctx, c, sq.DishName, opts)
		if err != nil && !errors.Is(err, errNotFound) {
			return nil, err
		}
		if src != nil {
			return []common.FetchedSource{*src}, nil
		}
	}
	return s.search(ctx, c, sq, class, opts)
}

func (s *wikipediaSite) search(ctx context.Context, c *trustedClient, sq common.StructuredQuery, class common.Classification, opts fetchOptions) ([]common.FetchedSource, error) {
	resp, err := c.get(ctx, s.baseURL+"/w/api.php", map[string]string{
		"action":   "query",
		"list":     "search",
		"srsearch": s.searchQuery(sq, class),
		"srlimit":  strconv.Itoa(opts.limit * searchOverfetch),
		"format":   "json",
	})
	if err != nil {
		return nil, err
	}

	var search wikiSearchResponse
	if err := common.ParseJSONBytes(resp.Body(), &search); err != nil {
		return nil, fmt.Errorf("failed to parse wikipedia search: %w", err)
	}

	var out []common.FetchedSource
	for _, hit := range search.Query.Search {
		if len(out) >= opts.limit {
			break
		}
		src, err := s.summary(ctx, c, hit.Title, opts)
		if errors.Is(err, errNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}
		if src != nil {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (s *wikipediaSite) summary(ctx context.Context, c *trustedClient, title string, opts fetchOptions) (*common.FetchedSource, error) {
	path := url.PathEscape(strings.ReplaceAll(title, " ", "_"))
	resp, err := c.get(ctx, s.baseURL+"/api/rest_v1/page/summary/"+path, nil)
	if err != nil {
		return nil, err
	}

	var sum wikiSummary
	if err := common.ParseJSONBytes(resp.Body(), &sum); err != nil {
		return nil, fmt.Errorf("failed to parse wikipedia summary: %w", err)
	}
	extract := strings.TrimSpace(sum.Extract)
	if sum.Type == disambiguationTyp || extract == "" {
		return nil, nil
	}

	pageURL := sum.ContentURLs.Desktop.Page
	if pageURL == "" {
		pageURL = s.baseURL + "/wiki/" + path
	}

	return &common.FetchedSource{
		URL:          pageURL,
		Title:        sum.Title,
		Domain:       hostOf(pageURL),
		ExcerptText:  common.Truncate(extract, opts.maxExcerpt),
		TrustScore:   wikipediaTrust,
		SnapshotText: common.Truncate(extract, opts.maxSnapshot),
	}, nil
}
