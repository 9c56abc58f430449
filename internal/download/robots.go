package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/temoto/robotstxt"

	"newsflow/internal/logging"
	"newsflow/internal/services"
)

// allowedByRobots consults the cached robots.txt for target's host. An
// unreachable robots.txt allows everything; a transport error is returned so
// the item retries on a later tick.
func (d *Downloader) allowedByRobots(ctx context.Context, target *url.URL) (bool, error) {
	data, err := d.robotsFor(ctx, target)
	if err != nil {
		return false, services.Wrap(services.ErrTransient, stageName, "robots", "fetch robots.txt", err)
	}
	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return data.TestAgent(path, d.userAgent), nil
}

func (d *Downloader) robotsFor(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	key := target.Scheme + "://" + target.Host
	d.robotsMu.Lock()
	cached, ok := d.robots[key]
	d.robotsMu.Unlock()
	if ok {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", d.userAgent)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("robots.txt: http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBody))
	if err != nil {
		return nil, err
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		logging.WithContext(ctx, d.logger).Debug("robots.txt unparsable; allowing",
			logging.String("host", target.Host),
			logging.Error(err),
		)
		data, _ = robotstxt.FromStatusAndBytes(http.StatusNotFound, nil)
	}

	d.robotsMu.Lock()
	d.robots[key] = data
	d.robotsMu.Unlock()
	return data, nil
}
