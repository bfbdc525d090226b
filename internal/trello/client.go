package trello

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// Client reads one Trello board.
type Client struct {
	baseURL    string
	apiKey     string
	token      string
	boardID    string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration
}

// Card is the subset of a Trello card the delivery view needs.
type Card struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Desc             string     `json:"desc"`
	IDList           string     `json:"idList"`
	Due              *time.Time `json:"due"`
	Labels           []Label    `json:"labels"`
	Members          []Member   `json:"members"`
	ShortURL         string     `json:"shortUrl"`
	DateLastActivity string     `json:"dateLastActivity"`
}

type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Member struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
}

type List struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NewClient constructs a client for the board with API key and token.
func NewClient(baseURL, apiKey, token, boardID string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		token:      token,
		boardID:    boardID,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UseRedisCache configures optional Redis caching of board reads.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// Cards returns the open cards of the board with members and list ids.
func (c *Client) Cards(ctx context.Context) ([]Card, error) {
	q := url.Values{}
	q.Set("customFieldItems", "true")
	q.Set("members", "true")
	q.Set("list", "true")
	q.Set("attachments", "true")
	endpoint := c.endpoint("cards", q)

	cacheKey := "trello:cards:" + c.boardID
	var cards []Card
	if c.readCache(ctx, cacheKey, &cards) {
		return cards, nil
	}
	if err := c.doGet(ctx, endpoint, &cards); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, cards)
	return cards, nil
}

// Lists returns the lists of the board.
func (c *Client) Lists(ctx context.Context) ([]List, error) {
	endpoint := c.endpoint("lists", url.Values{})

	cacheKey := "trello:lists:" + c.boardID
	var lists []List
	if c.readCache(ctx, cacheKey, &lists) {
		return lists, nil
	}
	if err := c.doGet(ctx, endpoint, &lists); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKey, lists)
	return lists, nil
}

// Board fetches cards and lists concurrently.
func (c *Client) Board(ctx context.Context) ([]Card, []List, error) {
	var (
		cards []Card
		lists []List
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cards, err = c.Cards(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		lists, err = c.Lists(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return cards, lists, nil
}

func (c *Client) endpoint(resource string, q url.Values) string {
	q.Set("key", c.apiKey)
	q.Set("token", c.token)
	return fmt.Sprintf("%s/boards/%s/%s?%s", c.baseURL, url.PathEscape(c.boardID), resource, q.Encode())
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("trello api error: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
