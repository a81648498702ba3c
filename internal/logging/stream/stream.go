package stream

import (
	"context"
	"errors"
	"time"

	"github.com/Chichichkin/CloudWatchShipper/internal/logging"
)

// Provider names the log stream receiving the current hour's batches and
// makes sure it exists before the first submission. A name confirmed once is
// cached for the process lifetime, so each hourly stream costs at most one
// existence check and one creation call. Callers serialize access through
// the flush lock; the provider adds no locking of its own.
type Provider struct {
	group  string
	prefix string
	client logging.SinkClient
	known  map[string]struct{}
	now    func() time.Time
}

func New(group, prefix string, client logging.SinkClient) (*Provider, error) {
	if group == "" {
		return nil, errors.New("log group name must not be empty")
	}
	return &Provider{
		group:  group,
		prefix: prefix,
		client: client,
		known:  make(map[string]struct{}),
		now:    time.Now,
	}, nil
}

// CurrentStreamName resolves the stream for the current UTC hour, creating
// it remotely if needed. Errors propagate uncached so the next call retries
// the check.
func (p *Provider) CurrentStreamName(ctx context.Context) (string, error) {
	name := p.nameFor(p.now().UTC())
	if _, ok := p.known[name]; ok {
		return name, nil
	}

	existing, err := p.client.DescribeStreams(ctx, p.group, name)
	if err != nil {
		return "", err
	}

	found := false
	for _, candidate := range existing {
		if candidate == name {
			found = true
			break
		}
	}
	if !found {
		if err := p.client.CreateStream(ctx, p.group, name); err != nil {
			return "", err
		}
	}

	p.known[name] = struct{}{}
	return name, nil
}

// nameFor derives the hourly stream name, e.g. "app-2025-01-02-03-UTC".
// The same name is reused for the whole UTC hour and rotates at the boundary.
func (p *Provider) nameFor(t time.Time) string {
	name := t.Format("2006-01-02-15") + "-UTC"
	if p.prefix == "" {
		return name
	}
	return p.prefix + "-" + name
}
