package rest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/evergreen-ci/gimlet"
	"github.com/mongodb/grip"
	"github.com/mongodb/threadpool"
	"github.com/pkg/errors"
	"golang.org/x/net/context/ctxhttp"
)

const (
	defaultClientPort int = 3000
	maxClientPort         = 65535
)

// Client provides an interface for interacting with a remote
// StatusService.
type Client struct {
	host   string
	port   int
	client *http.Client
}

// NewClient takes host and port information and constructs a new
// Client.
func NewClient(host string, port int) (*Client, error) {
	c := &Client{client: &http.Client{}}

	return c.initClient(host, port)
}

// NewClientFromExisting takes an existing http.Client object and
// produces a new Client object.
func NewClientFromExisting(client *http.Client, host string, port int) (*Client, error) {
	if client == nil {
		return nil, errors.New("must use a non-nil existing client")
	}

	c := &Client{client: client}

	return c.initClient(host, port)
}

func (c *Client) initClient(host string, port int) (*Client, error) {
	if err := c.SetHost(host); err != nil {
		return nil, err
	}

	if err := c.SetPort(port); err != nil {
		return nil, err
	}

	return c, nil
}

// SetHost allows callers to change the hostname (including leading
// "http(s)") for the Client. Returns an error if the specified host
// does not start with "http".
func (c *Client) SetHost(h string) error {
	if !strings.HasPrefix(h, "http") {
		return errors.Errorf("host '%s' is malformed. must start with 'http'", h)
	}

	c.host = strings.TrimSuffix(h, "/")

	return nil
}

// Host returns the current host.
func (c *Client) Host() string {
	return c.host
}

// SetPort allows callers to change the port used for the client. If
// the port is invalid, returns an error and sets the port to the
// default value. (3000)
func (c *Client) SetPort(p int) error {
	if p <= 0 || p > maxClientPort {
		c.port = defaultClientPort
		return errors.Errorf("cannot set the port to %d, using %d instead", p, defaultClientPort)
	}

	c.port = p
	return nil
}

// Port returns the current port value for the Client.
func (c *Client) Port() int {
	return c.port
}

func (c *Client) getURL(endpoint string) string {
	var url []string

	if c.port == 80 || c.port == 0 {
		url = append(url, c.host)
	} else {
		url = append(url, fmt.Sprintf("%s:%d", c.host, c.port))
	}

	if endpoint = strings.Trim(endpoint, "/"); endpoint != "" {
		url = append(url, endpoint)
	}

	return strings.Join(url, "/")
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := ctxhttp.Get(ctx, c.client, c.getURL(endpoint))
	if err != nil {
		return errors.Wrapf(err, "problem requesting '%s'", endpoint)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return errors.Errorf("request for '%s' returned %s", endpoint, resp.Status)
	}

	return errors.Wrapf(gimlet.GetJSON(resp.Body, out), "problem decoding response from '%s'", endpoint)
}

// Status returns the stats of the remote pool.
func (c *Client) Status(ctx context.Context) (*threadpool.PoolStats, error) {
	stats := &threadpool.PoolStats{}
	if err := c.get(ctx, "/v1/status", stats); err != nil {
		return nil, err
	}

	return stats, nil
}

// Workers returns the state of every worker in the remote pool.
func (c *Client) Workers(ctx context.Context) ([]threadpool.WorkerInfo, error) {
	out := []threadpool.WorkerInfo{}
	if err := c.get(ctx, "/v1/workers", &out); err != nil {
		return nil, err
	}

	return out, nil
}

// WaitAll blocks until every job submitted to the remote pool has
// finished, or until the context is canceled. Returns false if the
// context was canceled or the service could not be reached.
func (c *Client) WaitAll(ctx context.Context) bool {
	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			stats, err := c.Status(ctx)
			if err != nil {
				grip.Debug(err)
				failures++
				if failures >= 10 {
					return false
				}
				timer.Reset(time.Duration(failures) * 100 * time.Millisecond)
				continue
			}

			if stats.Submitted != stats.Finished() {
				grip.Debugf("%d of %d jobs finished, waiting", stats.Finished(), stats.Submitted)
				timer.Reset(100 * time.Millisecond)
				continue
			}

			return true
		}
	}
}
