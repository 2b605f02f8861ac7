package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railguard/railguard/models"
	"github.com/railguard/railguard/transport"
)

func testScraper(t *testing.T, base string, subreddits ...string) *Scraper {
	t.Helper()
	s := New(transport.NewClient(nil), Config{
		UserAgent:  "railguard-test/1.0",
		DataDir:    t.TempDir(),
		Subreddits: subreddits,
	})
	if base != "" {
		s.publicBase = base
		s.oauthBase = base
		s.tokenURL = base + "/api/v1/access_token"
	}
	return s
}

func postListing(posts ...map[string]any) string {
	children := make([]map[string]any, 0, len(posts))
	for _, p := range posts {
		children = append(children, map[string]any{"data": p})
	}
	b, _ := json.Marshal(map[string]any{"data": map[string]any{"children": children}})
	return string(b)
}

func TestFetchPostsSelfAndLink(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/golang/new.json":
			fmt.Fprint(w, postListing(
				map[string]any{
					"name": "t3_self", "subreddit": "golang", "author": "alice",
					"is_self": true, "selftext": "post body", "title": "ignored",
					"created_utc": 1700000000,
				},
				map[string]any{
					"name": "t3_link", "subreddit": "golang", "author": "bob",
					"is_self": false, "url": "https://example.com/article", "title": "link title",
				},
				map[string]any{"title": "no name, skipped"},
			))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := testScraper(t, srv.URL, "golang")
	items := s.fetchPosts(context.Background(), "golang")
	require.Len(items, 2)

	assert.Equal("t3_self", items[0].ID)
	assert.Equal("post body", items[0].Text)
	assert.Equal(models.ContentTypeText, items[0].ContentType)
	assert.Equal("reddit", items[0].Source)
	assert.Equal("golang", items[0].Subreddit)
	assert.Equal("2023-11-14T22:13:20Z", items[0].Timestamp)

	// non-image link posts fall back to the title as text
	assert.Equal("link title", items[1].Text)
	assert.Equal(models.ContentTypeText, items[1].ContentType)
}

func TestFetchPostsDownloadsImage(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	imageBytes := []byte{0x89, 0x50, 0x4e, 0x47, 0x01}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/pics/new.json":
			fmt.Fprint(w, postListing(map[string]any{
				"name": "t3_img", "subreddit": "pics", "author": "carol",
				"url": srv.URL + "/img/photo.png",
			}))
		case "/img/photo.png":
			w.Write(imageBytes)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := testScraper(t, srv.URL, "pics")
	items := s.fetchPosts(context.Background(), "pics")
	require.Len(items, 1)

	assert.Equal(models.ContentTypeImage, items[0].ContentType)
	data, err := os.ReadFile(items[0].ImagePath)
	require.NoError(err)
	assert.Equal(imageBytes, data)

	sum := sha256.Sum256([]byte(srv.URL + "/img/photo.png"))
	assert.Equal(hex.EncodeToString(sum[:])+".png", filepath.Base(items[0].ImagePath))
}

func TestDownloadImageSkipsExisting(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	s := testScraper(t, "")
	s.cfg.DataDir = t.TempDir()
	url := srv.URL + "/a.jpg"

	first := s.downloadImage(context.Background(), url)
	require.NotEmpty(first)
	second := s.downloadImage(context.Background(), url)

	assert.Equal(first, second)
	assert.Equal(1, hits)
}

func TestFetchCommentsRecursesReplies(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	nestedListing := json.RawMessage(postListing(map[string]any{
		"name": "t1_child", "subreddit": "golang", "author": "dan", "body": "nested reply",
	}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/golang/comments.json" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, postListing(
			map[string]any{
				"name": "t1_top", "subreddit": "golang", "author": "erin",
				"body": "top comment", "replies": nestedListing,
			},
			map[string]any{
				"name": "t1_leaf", "subreddit": "golang", "author": "frank",
				"body": "leaf comment", "replies": "",
			},
		))
	}))
	defer srv.Close()

	s := testScraper(t, srv.URL, "golang")
	items := s.fetchComments(context.Background(), "golang")
	require.Len(items, 3)

	assert.Equal("t1_top", items[0].ID)
	assert.Equal("reddit_comment", items[0].Source)
	assert.Equal("nested reply", items[1].Text)
	assert.Equal("t1_leaf", items[2].ID)
}

func TestAuthenticateUsesOAuthEndpoint(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var sawBearer, sawBasic bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/access_token":
			sawBasic = r.Header.Get("Authorization") != ""
			fmt.Fprint(w, `{"access_token":"tok123","expires_in":3600}`)
		case "/r/golang/new.json":
			sawBearer = r.Header.Get("Authorization") == "Bearer tok123"
			fmt.Fprint(w, postListing())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := testScraper(t, srv.URL, "golang")
	s.cfg.ClientID = "id"
	s.cfg.ClientSecret = "secret"

	items := s.fetchPosts(context.Background(), "golang")
	require.Empty(items)
	assert.True(sawBasic)
	assert.True(sawBearer)
	assert.Equal("tok123", s.token())
}

func TestAuthenticateFailureFallsBackToPublic(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/access_token":
			w.WriteHeader(http.StatusUnauthorized)
		case "/r/golang/new.json":
			assert.Empty(r.Header.Get("Authorization"))
			fmt.Fprint(w, postListing())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := testScraper(t, srv.URL, "golang")
	s.cfg.ClientID = "id"
	s.cfg.ClientSecret = "bad"

	s.fetchPosts(context.Background(), "golang")
	assert.Empty(s.token())
}

func TestStartStopLifecycle(t *testing.T) {
	assert := assert.New(t)

	var mu sync.Mutex
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		polls++
		mu.Unlock()
		fmt.Fprint(w, postListing())
	}))
	defer srv.Close()

	s := testScraper(t, srv.URL, "golang")
	assert.False(s.IsScraping())

	s.Start(3600)
	assert.True(s.IsScraping())
	s.Start(3600) // second start is a no-op

	// first poll happens immediately, before the first tick
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := polls
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Stop()
	assert.False(s.IsScraping())
	s.Stop() // idempotent

	mu.Lock()
	assert.Greater(polls, 0)
	mu.Unlock()
}

func TestIsImageURL(t *testing.T) {
	assert := assert.New(t)

	assert.True(isImageURL("https://example.com/a.jpg"))
	assert.True(isImageURL("https://example.com/a.JPEG?width=640"))
	assert.True(isImageURL("https://example.com/b.png"))
	assert.True(isImageURL("https://i.redd.it/abc123"))
	assert.False(isImageURL("https://example.com/article"))
	assert.False(isImageURL("https://example.com/clip.gifv"))
	assert.False(isImageURL(""))
}
