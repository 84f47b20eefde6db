package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"recipe-autofind/internal/pkg/common"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	britannicaName    = "britannica"
	britannicaBaseURL = "https://www.britannica.com"
	britannicaTrust   = 0.95

	wikibooksName    = "wikibooks"
	wikibooksBaseURL = "https://en.wikibooks.org"
	wikibooksTrust   = 0.80

	leadParagraphs = 3
)

// pageSite 以 HTML 主題頁為來源的站點，路徑由查詢推導
type pageSite struct {
	name     string
	baseURL  string
	trust    float64
	paths    func(sq common.StructuredQuery, class common.Classification) []string
	content  []string
	noiseSel []string
}

func newBritannicaSite(baseURL string) *pageSite {
	return &pageSite{
		name:    britannicaName,
		baseURL: baseURL,
		trust:   britannicaTrust,
		paths: func(sq common.StructuredQuery, class common.Classification) []string {
			var out []string
			if class == common.ClassKnownRecipe && sq.DishName != "" {
				out = append(out, "/topic/"+url.PathEscape(strings.ReplaceAll(sq.DishName, " ", "-")))
			}
			if sq.Country != "" {
				out = append(out, "/topic/"+url.PathEscape(strings.ReplaceAll(sq.Country, " ", "-"))+"-cuisine")
			}
			return out
		},
		content:  []string{"section[data-level='1']", ".topic-content", "article", "main"},
		noiseSel: []string{"script", "style", "figure", "aside", ".ad", "nav"},
	}
}

func newWikibooksSite(baseURL string) *pageSite {
	return &pageSite{
		name:    wikibooksName,
		baseURL: baseURL,
		trust:   wikibooksTrust,
		paths: func(sq common.StructuredQuery, class common.Classification) []string {
			var out []string
			if class == common.ClassKnownRecipe && sq.DishName != "" {
				out = append(out, "/wiki/Cookbook:"+wikiTitle(sq.DishName))
			}
			if sq.Country != "" {
				out = append(out, "/wiki/Cookbook:Cuisine_of_"+wikiTitle(sq.Country))
			}
			return out
		},
		content:  []string{"#mw-content-text .mw-parser-output", "#mw-content-text", "#content"},
		noiseSel: []string{"script", "style", "table", ".navbox", ".mw-editsection", "sup.reference"},
	}
}

// wikiTitle "chicken biryani" → "Chicken_Biryani"；Caser 非並行安全，每次建立
func wikiTitle(s string) string {
	title := cases.Title(language.English).String(strings.TrimSpace(s))
	return url.PathEscape(strings.ReplaceAll(title, " ", "_"))
}

func (s *pageSite) Name() string    { return s.name }
func (s *pageSite) Trust() float64  { return s.trust }
func (s *pageSite) BaseURL() string { return s.baseURL }

func (s *pageSite) Fetch(ctx context.Context, c *trustedClient, sq common.StructuredQuery, class common.Classification, opts fetchOptions) ([]common.FetchedSource, error) {
	var out []common.FetchedSource
	for _, p := range s.paths(sq, class) {
		if len(out) >= opts.limit {
			break
		}
		src, err := s.fetchPage(ctx, c, s.baseURL+p, opts)
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

func (s *pageSite) fetchPage(ctx context.Context, c *trustedClient, pageURL string, opts fetchOptions) (*common.FetchedSource, error) {
	resp, err := c.get(ctx, pageURL, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s page: %w", s.name, err)
	}

	finalURL := pageURL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil {
		finalURL = raw.Request.URL.String()
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	container := s.contentSelection(doc)
	excerpt := leadText(doc, container)
	if excerpt == "" {
		return nil, nil
	}

	return &common.FetchedSource{
		URL:          finalURL,
		Title:        title,
		Domain:       hostOf(finalURL),
		ExcerptText:  common.Truncate(excerpt, opts.maxExcerpt),
		TrustScore:   s.trust,
		SnapshotText: common.Truncate(s.snapshot(container, excerpt), opts.maxSnapshot),
	}, nil
}

// contentSelection 依序嘗試內容選擇器，並移除雜訊元素
func (s *pageSite) contentSelection(doc *goquery.Document) *goquery.Selection {
	for _, sel := range s.content {
		found := doc.Find(sel).First()
		if found.Length() > 0 {
			cleaned := found.Clone()
			for _, noise := range s.noiseSel {
				cleaned.Find(noise).Remove()
			}
			return cleaned
		}
	}
	return doc.Find("body").First()
}

// leadText meta description 加上開頭幾段文字
func leadText(doc *goquery.Document, container *goquery.Selection) string {
	var parts []string
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if desc = strings.TrimSpace(desc); desc != "" {
			parts = append(parts, desc)
		}
	}

	container.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := strings.Join(strings.Fields(p.Text()), " ")
		if text != "" {
			parts = append(parts, text)
		}
		return len(parts) < leadParagraphs+1
	})
	return strings.Join(parts, "\n\n")
}

func (s *pageSite) snapshot(container *goquery.Selection, fallback string) string {
	html, err := container.Html()
	if err != nil || strings.TrimSpace(html) == "" {
		return fallback
	}
	converted, err := md.NewConverter(s.baseURL, true, nil).ConvertString(html)
	if err != nil {
		common.LogWarn("來源快照轉換失敗，改用摘要")
		return fallback
	}
	if converted = strings.TrimSpace(converted); converted == "" {
		return fallback
	}
	return converted
}
