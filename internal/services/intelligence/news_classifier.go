package intelligence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"FxBridge/internal/domain/models"
	domsvc "FxBridge/internal/domain/service"
	icache "FxBridge/internal/service/cache"
	pkgcache "FxBridge/pkg/cache"
	"FxBridge/pkg/config"
)

const classifyCacheTTL = 6 * time.Hour

// HTTPNewsClassifier scores a headline's impact when the broker feed did not
// carry one. Used for headline-kind news only; calendar events arrive scored.
type HTTPNewsClassifier struct {
	base  *HTTPServiceBase
	cache icache.BytesCache
}

func NewHTTPNewsClassifier(cfg *config.Config) *HTTPNewsClassifier {
	return &HTTPNewsClassifier{base: NewHTTPServiceBase(cfg)}
}

// SetCache enables result caching so re-ingested headlines skip the
// classification round trip.
func (s *HTTPNewsClassifier) SetCache(c icache.BytesCache) { s.cache = c }

type classifyReq struct {
	Title    string `json:"title"`
	Currency string `json:"currency,omitempty"`
	Source   string `json:"source,omitempty"`
}

type classifyResp struct {
	Impact int `json:"impact"`
}

func (s *HTTPNewsClassifier) Classify(ctx context.Context, item *models.NewsItem) (int, error) {
	if item == nil {
		return 0, fmt.Errorf("news item is nil")
	}
	if item.Impact > 0 {
		return item.Impact, nil
	}

	key := classifyCacheKey(item)
	if s.cache != nil {
		if b, ok, err := s.cache.GetBytes(key); err == nil && ok {
			if impact, perr := strconv.Atoi(string(b)); perr == nil {
				return impact, nil
			}
		}
	}

	var resp classifyResp
	req := classifyReq{Title: item.Title, Currency: item.Currency, Source: item.Source}
	if err := s.base.PostJSON(ctx, "/news/classify", req, &resp); err != nil {
		return 0, err
	}
	if resp.Impact < 0 {
		resp.Impact = 0
	}
	if resp.Impact > 100 {
		resp.Impact = 100
	}
	if s.cache != nil {
		_ = s.cache.SetBytes(key, []byte(strconv.Itoa(resp.Impact)), classifyCacheTTL)
	}
	return resp.Impact, nil
}

func classifyCacheKey(item *models.NewsItem) string {
	return pkgcache.GenerateKey("news:impact", pkgcache.HashKey(item.Title+"|"+item.Currency))
}

var _ domsvc.NewsClassifier = (*HTTPNewsClassifier)(nil)
