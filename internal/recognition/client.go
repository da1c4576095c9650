package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"setlist/internal/audio"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultBaseURL     = "https://api.audd.io/"
	maxResponseBytes   = 1 << 20
	artworkSize        = "600x600"
)

// DefaultRateLimitCodes are the service error codes that signal throttling.
var DefaultRateLimitCodes = []int{901, 902}

// Config captures the runtime settings required to talk to the service.
type Config struct {
	BaseURL        string
	APIToken       string
	ReturnFields   string
	TimeoutSeconds int
	RateLimitCodes []int
}

// Client calls an AudD-style recognition endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a recognition client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			APIToken:       strings.TrimSpace(cfg.APIToken),
			ReturnFields:   strings.TrimSpace(cfg.ReturnFields),
			TimeoutSeconds: cfg.TimeoutSeconds,
			RateLimitCodes: slices.Clone(cfg.RateLimitCodes),
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.RateLimitCodes == nil {
		client.cfg.RateLimitCodes = slices.Clone(DefaultRateLimitCodes)
	}
	return client
}

type apiResponse struct {
	Status string     `json:"status"`
	Result *apiResult `json:"result"`
	Error  *apiError  `json:"error"`
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

type apiResult struct {
	Artist     string `json:"artist"`
	Title      string `json:"title"`
	Album      string `json:"album"`
	SongLink   string `json:"song_link"`
	AppleMusic *struct {
		URL     string `json:"url"`
		Artwork *struct {
			URL string `json:"url"`
		} `json:"artwork"`
	} `json:"apple_music"`
	Spotify *struct {
		Album *struct {
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
		ExternalURLs map[string]string `json:"external_urls"`
	} `json:"spotify"`
}

// Identify uploads the window audio and classifies the response. It performs a
// single HTTP request.
func (c *Client) Identify(ctx context.Context, window audio.Window) Outcome {
	if c.cfg.APIToken == "" {
		return Fatal("api token required")
	}
	if len(window.Data) == 0 {
		return Fatal("window audio is empty")
	}

	body, contentType, err := c.encodeRequest(window)
	if err != nil {
		return Fatal(fmt.Sprintf("encode request: %v", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, body)
	if err != nil {
		return Fatal(fmt.Sprintf("new request: %v", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return Transient("request cancelled", 0)
		}
		return Transient(fmt.Sprintf("http error (timeout=%s): %v", c.timeout(), err), 0)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Transient(fmt.Sprintf("read body: %v", err), 0)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return classifyStatus(resp.StatusCode, resp.Header.Get("Retry-After"), payload)
	}

	var decoded apiResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Transient(fmt.Sprintf("malformed response: %v", err), 0)
	}
	return c.classifyPayload(decoded)
}

func (c *Client) encodeRequest(window audio.Window) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("api_token", c.cfg.APIToken); err != nil {
		return nil, "", err
	}
	if c.cfg.ReturnFields != "" {
		if err := writer.WriteField("return", c.cfg.ReturnFields); err != nil {
			return nil, "", err
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="window-%05d.wav"`, window.Index))
	header.Set("Content-Type", "audio/wav")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(window.Data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

func classifyStatus(status int, retryAfterHeader string, body []byte) Outcome {
	reason := fmt.Sprintf("http %d: %s", status, snippet(body))
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		retryAfter, _ := parseRetryAfter(retryAfterHeader)
		return Transient(reason, retryAfter)
	default:
		return Fatal(reason)
	}
}

func (c *Client) classifyPayload(resp apiResponse) Outcome {
	switch strings.ToLower(strings.TrimSpace(resp.Status)) {
	case "success":
	case "error":
		if resp.Error == nil {
			return Fatal("service error without details")
		}
		reason := fmt.Sprintf("service error %d: %s", resp.Error.Code, strings.TrimSpace(resp.Error.Message))
		if c.isRateLimited(resp.Error) {
			return Transient(reason, 0)
		}
		return Fatal(reason)
	default:
		return Transient(fmt.Sprintf("malformed response: unknown status %q", resp.Status), 0)
	}

	result := resp.Result
	if result == nil {
		return NoMatch("no match")
	}
	artist := strings.TrimSpace(result.Artist)
	title := strings.TrimSpace(result.Title)
	if artist == "" && title == "" {
		return NoMatch("match without artist or title")
	}
	if artist == "" {
		artist = "Unknown Artist"
	}
	if title == "" {
		title = "Unknown Title"
	}
	return Identified(Match{
		Artist:     artist,
		Title:      title,
		Album:      strings.TrimSpace(result.Album),
		SongURL:    songURL(result),
		ArtworkURL: artworkURL(result),
	})
}

// isRateLimited matches configured codes first, then falls back to the
// message text the service uses for quota errors.
func (c *Client) isRateLimited(apiErr *apiError) bool {
	if slices.Contains(c.cfg.RateLimitCodes, apiErr.Code) {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	for _, marker := range []string{"too many", "rate limit", "rate-limit", "limit exceeded", "429"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func songURL(result *apiResult) string {
	if link := strings.TrimSpace(result.SongLink); link != "" {
		return link
	}
	if result.AppleMusic != nil {
		if link := strings.TrimSpace(result.AppleMusic.URL); link != "" {
			return link
		}
	}
	if result.Spotify != nil {
		return strings.TrimSpace(result.Spotify.ExternalURLs["spotify"])
	}
	return ""
}

func artworkURL(result *apiResult) string {
	if result.AppleMusic != nil && result.AppleMusic.Artwork != nil {
		if art := strings.TrimSpace(result.AppleMusic.Artwork.URL); art != "" {
			return strings.ReplaceAll(art, "{w}x{h}", artworkSize)
		}
	}
	if result.Spotify != nil && result.Spotify.Album != nil {
		for _, image := range result.Spotify.Album.Images {
			if art := strings.TrimSpace(image.URL); art != "" {
				return art
			}
		}
	}
	return ""
}

func (c *Client) timeout() time.Duration {
	if c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func snippet(body []byte) string {
	const limit = 200
	text := strings.Join(strings.Fields(string(body)), " ")
	if len(text) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	if text == "" {
		return "(empty body)"
	}
	return text
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
