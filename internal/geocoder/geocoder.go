package geocoder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultAmapURL      = "https://restapi.amap.com/v3/geocode/regeo"
	defaultNominatimURL = "https://nominatim.openstreetmap.org/reverse"

	// 与 location_address 列宽一致
	maxAddressLen = 255
	maxCacheSize  = 10000
)

// ErrNoResult 服务商未返回地址
var ErrNoResult = errors.New("no geocoding result")

// Client 逆地理编码客户端
// 配置了高德 API Key 时使用高德，否则使用 Nominatim
type Client struct {
	amapAPIKey   string
	amapURL      string
	nominatimURL string
	userAgent    string
	httpClient   *http.Client
	logger       *zap.Logger

	// 缓存：坐标精确到小数点后 4 位
	cache   map[string]string
	cacheMu sync.RWMutex

	// Nominatim 使用策略要求每秒最多 1 次请求
	nominatimLimiter *rate.Limiter
}

// NewClient 创建逆地理编码客户端
func NewClient(amapAPIKey string, logger *zap.Logger) *Client {
	return &Client{
		amapAPIKey:   amapAPIKey,
		amapURL:      defaultAmapURL,
		nominatimURL: defaultNominatimURL,
		userAgent:    "Speedgazer/1.0 (speed enforcement telemetry)",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger:           logger.Named("geocoder"),
		cache:            make(map[string]string),
		nominatimLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Provider 返回当前使用的服务提供商
func (c *Client) Provider() string {
	if c.amapAPIKey != "" {
		return "amap"
	}
	return "nominatim"
}

// ReverseGeocode 根据经纬度返回格式化地址
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	cacheKey := fmt.Sprintf("%.4f,%.4f", lat, lng)

	c.cacheMu.RLock()
	if addr, ok := c.cache[cacheKey]; ok {
		c.cacheMu.RUnlock()
		return addr, nil
	}
	c.cacheMu.RUnlock()

	var (
		address string
		err     error
	)
	if c.amapAPIKey != "" {
		address, err = c.reverseGeocodeAmap(ctx, lat, lng)
	} else {
		address, err = c.reverseGeocodeNominatim(ctx, lat, lng)
	}
	if err != nil {
		return "", err
	}
	address = truncate(strings.TrimSpace(address), maxAddressLen)
	if address == "" {
		return "", ErrNoResult
	}

	c.cacheMu.Lock()
	if len(c.cache) >= maxCacheSize {
		c.cache = make(map[string]string)
	}
	c.cache[cacheKey] = address
	c.cacheMu.Unlock()

	c.logger.Debug("Geocoded location",
		zap.String("provider", c.Provider()),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.String("address", address))

	return address, nil
}

// CacheSize 获取缓存大小
func (c *Client) CacheSize() int {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return len(c.cache)
}

// ============ 高德地图实现 ============

type amapRegeoResponse struct {
	Status    string `json:"status"`
	Info      string `json:"info"`
	InfoCode  string `json:"infocode"`
	Regeocode *struct {
		// 无结果时高德返回 [] 而不是字符串
		FormattedAddress any `json:"formatted_address"`
	} `json:"regeocode"`
}

func (c *Client) reverseGeocodeAmap(ctx context.Context, lat, lng float64) (string, error) {
	q := url.Values{}
	q.Set("key", c.amapAPIKey)
	// 高德 API 要求经度在前，纬度在后
	q.Set("location", fmt.Sprintf("%.6f,%.6f", lng, lat))
	q.Set("extensions", "base")
	q.Set("output", "JSON")

	var result amapRegeoResponse
	if err := c.getJSON(ctx, c.amapURL+"?"+q.Encode(), &result); err != nil {
		return "", fmt.Errorf("amap regeo: %w", err)
	}
	if result.Status != "1" {
		return "", fmt.Errorf("amap api error: %s (code: %s)", result.Info, result.InfoCode)
	}
	if result.Regeocode == nil {
		return "", ErrNoResult
	}
	addr, _ := result.Regeocode.FormattedAddress.(string)
	return addr, nil
}

// ============ Nominatim (OpenStreetMap) 实现 ============

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
	Address     struct {
		HouseNumber string `json:"house_number"`
		Road        string `json:"road"`
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		State       string `json:"state"`
		Country     string `json:"country"`
	} `json:"address"`
}

func (c *Client) reverseGeocodeNominatim(ctx context.Context, lat, lng float64) (string, error) {
	if err := c.nominatimLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait nominatim rate limit: %w", err)
	}

	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%.6f", lat))
	q.Set("lon", fmt.Sprintf("%.6f", lng))
	q.Set("format", "json")

	var result nominatimResponse
	if err := c.getJSON(ctx, c.nominatimURL+"?"+q.Encode(), &result); err != nil {
		return "", fmt.Errorf("nominatim reverse: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("nominatim api error: %s", result.Error)
	}

	// 城市字段可能在 city/town/village 中
	a := result.Address
	city := firstNonEmpty(a.City, a.Town, a.Village)
	road := strings.TrimSpace(strings.Join([]string{a.HouseNumber, a.Road}, " "))

	parts := make([]string, 0, 4)
	for _, p := range []string{road, city, a.State, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return result.DisplayName, nil
	}
	return strings.Join(parts, ", "), nil
}

func (c *Client) getJSON(ctx context.Context, apiURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// truncate 按字符截断，避免切断多字节字符
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
