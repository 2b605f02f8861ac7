// Package scraper polls configured subreddits on an interval, parses posts
// and comment trees into content items, downloads referenced images, and
// hands each item to a callback for moderation.
package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/railguard/railguard/models"
	"github.com/railguard/railguard/pkg/ratelimit"
	"github.com/railguard/railguard/transport"
)

// Config carries the credentials and layout the scraper needs. Client
// credentials are optional: without them the scraper reads the public
// endpoints unauthenticated, which is a deliberate degraded mode.
type Config struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	DataDir      string
	Subreddits   []string
	Logger       *slog.Logger
}

type Scraper struct {
	client  *transport.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	cfg     Config

	publicBase string
	oauthBase  string
	tokenURL   string

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	cbMu          sync.Mutex
	onItemScraped func(models.ContentItem)
}

func New(client *transport.Client, cfg Config) *Scraper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		client:     client,
		limiter:    ratelimit.New(60, time.Minute),
		logger:     logger.With("subsystem", "scraper"),
		cfg:        cfg,
		publicBase: "https://www.reddit.com",
		oauthBase:  "https://oauth.reddit.com",
		tokenURL:   "https://www.reddit.com/api/v1/access_token",
	}
}

// SetOnItemScraped registers the per-item callback. It fires once per parsed
// item from the polling goroutine.
func (s *Scraper) SetOnItemScraped(cb func(models.ContentItem)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onItemScraped = cb
}

func (s *Scraper) emit(item models.ContentItem) {
	s.cbMu.Lock()
	cb := s.onItemScraped
	s.cbMu.Unlock()
	if cb != nil {
		cb(item)
	}
}

// Start launches the polling loop. Calling Start while running is a no-op
// with a warning.
func (s *Scraper) Start(intervalSeconds int) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		s.logger.Warn("scraper already running, ignoring start")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	interval := time.Duration(intervalSeconds) * time.Second
	go s.loop(ctx, interval)
	s.logger.Info("scraper started", "interval", interval, "subreddits", len(s.cfg.Subreddits))
}

// Stop cancels the polling loop and waits for it to exit, so no poll runs
// concurrently with or after Stop returning. Safe to call repeatedly.
func (s *Scraper) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	<-s.done
	s.running = false
	s.logger.Info("scraper stopped")
}

func (s *Scraper) IsScraping() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

func (s *Scraper) loop(ctx context.Context, interval time.Duration) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.scrapeOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scrapeOnce(ctx)
		}
	}
}

// scrapeOnce walks every configured subreddit. A failing source logs and
// moves on; it never aborts the rest of the tick.
func (s *Scraper) scrapeOnce(ctx context.Context) {
	s.logger.Info("polling subreddits", "count", len(s.cfg.Subreddits))
	for _, subreddit := range s.cfg.Subreddits {
		if ctx.Err() != nil {
			return
		}
		for _, item := range s.fetchPosts(ctx, subreddit) {
			s.emit(item)
		}
		for _, item := range s.fetchComments(ctx, subreddit) {
			s.emit(item)
		}
	}
}

// authenticate performs the client-credentials token exchange, caching the
// token until shortly before expiry. Missing credentials or a failed
// exchange leave the scraper in unauthenticated public mode.
func (s *Scraper) authenticate(ctx context.Context) {
	if s.cfg.ClientID == "" || s.cfg.ClientSecret == "" {
		return
	}

	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	if s.accessToken != "" && time.Now().Before(s.tokenExpiry) {
		return
	}

	creds := base64.StdEncoding.EncodeToString([]byte(s.cfg.ClientID + ":" + s.cfg.ClientSecret))
	resp := s.client.Post(ctx, transport.Request{
		URL: s.tokenURL,
		Headers: map[string]string{
			"User-Agent":    s.cfg.UserAgent,
			"Authorization": "Basic " + creds,
		},
		Body:        []byte("grant_type=client_credentials&duration=permanent"),
		ContentType: "application/x-www-form-urlencoded",
	})
	if !resp.Success {
		s.logger.Warn("failed to obtain oauth token, falling back to public endpoints",
			"status", resp.StatusCode, "err", resp.ErrorMessage)
		s.accessToken = ""
		return
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(resp.Body, &tok); err != nil || tok.AccessToken == "" {
		s.logger.Warn("unparseable oauth token response", "err", err)
		s.accessToken = ""
		return
	}
	if tok.ExpiresIn == 0 {
		tok.ExpiresIn = 3600
	}
	s.accessToken = tok.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	s.logger.Info("oauth token acquired")
}

func (s *Scraper) token() string {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()
	return s.accessToken
}

func (s *Scraper) listingURL(path string) (string, map[string]string) {
	headers := map[string]string{"User-Agent": s.cfg.UserAgent}
	if tok := s.token(); tok != "" {
		headers["Authorization"] = "Bearer " + tok
		return s.oauthBase + path, headers
	}
	return s.publicBase + path, headers
}

// reddit listing wire shapes
type listing struct {
	Data struct {
		Children []struct {
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type postData struct {
	Name       string  `json:"name"`
	Subreddit  string  `json:"subreddit"`
	Author     string  `json:"author"`
	IsSelf     bool    `json:"is_self"`
	Selftext   string  `json:"selftext"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	CreatedUTC float64 `json:"created_utc"`
}

type commentData struct {
	Name       string          `json:"name"`
	Subreddit  string          `json:"subreddit"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	CreatedUTC float64         `json:"created_utc"`
	Replies    json.RawMessage `json:"replies"`
}

func (s *Scraper) fetchListing(ctx context.Context, path string) (*listing, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	s.authenticate(ctx)

	reqURL, headers := s.listingURL(path)
	resp := s.client.Get(ctx, reqURL, headers)
	if !resp.Success {
		return nil, fmt.Errorf("listing fetch failed: status=%d err=%s", resp.StatusCode, resp.ErrorMessage)
	}

	var parsed listing
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("unparseable listing response: %w", err)
	}
	return &parsed, nil
}

func (s *Scraper) fetchPosts(ctx context.Context, subreddit string) []models.ContentItem {
	parsed, err := s.fetchListing(ctx, "/r/"+subreddit+"/new.json?limit=25")
	if err != nil {
		s.logger.Error("failed to fetch posts", "subreddit", subreddit, "err", err)
		fetchErrorCount.WithLabelValues("posts").Inc()
		return nil
	}

	var items []models.ContentItem
	for _, child := range parsed.Data.Children {
		var post postData
		if err := json.Unmarshal(child.Data, &post); err != nil || post.Name == "" {
			// one malformed child never aborts the batch
			s.logger.Warn("skipping malformed post record", "subreddit", subreddit, "err", err)
			continue
		}
		items = append(items, s.parsePost(ctx, post))
	}
	itemsScrapedCount.WithLabelValues("post").Add(float64(len(items)))
	return items
}

func (s *Scraper) parsePost(ctx context.Context, post postData) models.ContentItem {
	item := models.NewContentItem("reddit", models.ContentTypeText)
	item.ID = post.Name
	item.Subreddit = post.Subreddit
	item.Author = post.Author
	if post.CreatedUTC > 0 {
		item.Timestamp = time.Unix(int64(post.CreatedUTC), 0).UTC().Format(time.RFC3339)
	}

	switch {
	case post.IsSelf:
		item.Text = post.Selftext
	case isImageURL(post.URL):
		item.ContentType = models.ContentTypeImage
		if local := s.downloadImage(ctx, post.URL); local != "" {
			item.ImagePath = local
		} else {
			// classification can still hash/fetch the remote reference later
			item.ImagePath = post.URL
		}
	default:
		item.Text = post.Title
	}
	return item
}

func (s *Scraper) fetchComments(ctx context.Context, subreddit string) []models.ContentItem {
	parsed, err := s.fetchListing(ctx, "/r/"+subreddit+"/comments.json?limit=25")
	if err != nil {
		s.logger.Error("failed to fetch comments", "subreddit", subreddit, "err", err)
		fetchErrorCount.WithLabelValues("comments").Inc()
		return nil
	}

	var items []models.ContentItem
	s.parseCommentTree(parsed, &items)
	itemsScrapedCount.WithLabelValues("comment").Add(float64(len(items)))
	return items
}

// parseCommentTree walks a comment listing recursively: each reply becomes
// its own item. Recursion bottoms out on absent or non-object replies (the
// API sends an empty string when there are none).
func (s *Scraper) parseCommentTree(l *listing, items *[]models.ContentItem) {
	for _, child := range l.Data.Children {
		var comment commentData
		if err := json.Unmarshal(child.Data, &comment); err != nil || comment.Name == "" {
			s.logger.Warn("skipping malformed comment record", "err", err)
			continue
		}
		*items = append(*items, parseComment(comment))

		if len(comment.Replies) == 0 {
			continue
		}
		var replies listing
		if err := json.Unmarshal(comment.Replies, &replies); err != nil {
			continue
		}
		s.parseCommentTree(&replies, items)
	}
}

func parseComment(comment commentData) models.ContentItem {
	item := models.NewContentItem("reddit_comment", models.ContentTypeText)
	item.ID = comment.Name
	item.Subreddit = comment.Subreddit
	item.Author = comment.Author
	item.Text = comment.Body
	if comment.CreatedUTC > 0 {
		item.Timestamp = time.Unix(int64(comment.CreatedUTC), 0).UTC().Format(time.RFC3339)
	}
	return item
}

// downloadImage stores the image content-addressed by a hash of its URL, so
// re-encountering the same URL skips the download entirely.
func (s *Scraper) downloadImage(ctx context.Context, imageURL string) string {
	sum := sha256.Sum256([]byte(imageURL))
	ext := ".jpg"
	if strings.Contains(imageURL, ".png") {
		ext = ".png"
	}
	fullPath := filepath.Join(s.cfg.DataDir, "images", hex.EncodeToString(sum[:])+ext)

	if _, err := os.Stat(fullPath); err == nil {
		return fullPath
	}

	resp := s.client.Get(ctx, imageURL, map[string]string{"User-Agent": s.cfg.UserAgent})
	if !resp.Success {
		s.logger.Warn("image download failed", "url", imageURL, "status", resp.StatusCode)
		return ""
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		s.logger.Error("could not create image directory", "err", err)
		return ""
	}
	if err := os.WriteFile(fullPath, resp.Body, 0o644); err != nil {
		s.logger.Error("could not write downloaded image", "path", fullPath, "err", err)
		return ""
	}
	imageDownloadCount.Inc()
	return fullPath
}

// isImageURL classifies link posts by extension and known image hosts.
func isImageURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Host == "i.redd.it" {
		return true
	}
	lower := strings.ToLower(u.Path)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") || strings.HasSuffix(lower, ".png")
}
