package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Chichichkin/CloudWatchShipper/internal/testutils"
	"github.com/stretchr/testify/assert"
)

func fixedNow() time.Time {
	return time.Date(2025, 1, 2, 3, 45, 12, 0, time.UTC)
}

func newTestProvider(t *testing.T, prefix string, client *testutils.MockSinkClient) *Provider {
	p, err := New("app-logs", prefix, client)
	assert.NoError(t, err)
	p.now = fixedNow
	return p
}

func TestProvider_EmptyGroupRejected(t *testing.T) {
	_, err := New("", "app", &testutils.MockSinkClient{})
	assert.Error(t, err)
}

func TestProvider_NameWithPrefix(t *testing.T) {
	client := &testutils.MockSinkClient{
		ExistingStreams: []string{"app-2025-01-02-03-UTC"},
	}
	p := newTestProvider(t, "app", client)

	name, err := p.CurrentStreamName(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "app-2025-01-02-03-UTC", name)
	assert.Equal(t, 1, client.DescribeCalls)
	assert.Equal(t, 0, client.CreateCalls)
}

func TestProvider_NameWithoutPrefix(t *testing.T) {
	client := &testutils.MockSinkClient{
		ExistingStreams: []string{"2025-01-02-03-UTC"},
	}
	p := newTestProvider(t, "", client)

	name, err := p.CurrentStreamName(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "2025-01-02-03-UTC", name)
}

func TestProvider_NameUsesUTCHour(t *testing.T) {
	client := &testutils.MockSinkClient{}
	p := newTestProvider(t, "app", client)
	// 19:30 the previous day in UTC-8 is 03:30 UTC on Jan 2.
	p.now = func() time.Time {
		return time.Date(2025, 1, 1, 19, 30, 0, 0, time.FixedZone("PST", -8*3600))
	}

	name, err := p.CurrentStreamName(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "app-2025-01-02-03-UTC", name)
}

func TestProvider_CreatesMissingStream(t *testing.T) {
	client := &testutils.MockSinkClient{}
	p := newTestProvider(t, "app", client)

	name, err := p.CurrentStreamName(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, "app-2025-01-02-03-UTC", name)
	assert.Equal(t, 1, client.DescribeCalls)
	assert.Equal(t, 1, client.CreateCalls)
	assert.Contains(t, client.ExistingStreams, name)
}

func TestProvider_CacheSuppressesRemoteCalls(t *testing.T) {
	client := &testutils.MockSinkClient{}
	p := newTestProvider(t, "app", client)

	first, err := p.CurrentStreamName(context.Background())
	assert.NoError(t, err)
	second, err := p.CurrentStreamName(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, client.DescribeCalls)
	assert.Equal(t, 1, client.CreateCalls)
}

func TestProvider_DescribeErrorNotCached(t *testing.T) {
	client := &testutils.MockSinkClient{DescribeErr: errors.New("throttled")}
	p := newTestProvider(t, "app", client)

	_, err := p.CurrentStreamName(context.Background())
	assert.Error(t, err)

	client.DescribeErr = nil
	name, err := p.CurrentStreamName(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, "app-2025-01-02-03-UTC", name)
	assert.Equal(t, 2, client.DescribeCalls)
}

func TestProvider_CreateErrorNotCached(t *testing.T) {
	client := &testutils.MockSinkClient{CreateErr: errors.New("access denied")}
	p := newTestProvider(t, "app", client)

	_, err := p.CurrentStreamName(context.Background())
	assert.Error(t, err)

	client.CreateErr = nil
	_, err = p.CurrentStreamName(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 2, client.DescribeCalls)
	assert.Equal(t, 2, client.CreateCalls)
}

func TestProvider_RotatesAtHourBoundary(t *testing.T) {
	client := &testutils.MockSinkClient{}
	p := newTestProvider(t, "app", client)

	first, err := p.CurrentStreamName(context.Background())
	assert.NoError(t, err)

	p.now = func() time.Time {
		return time.Date(2025, 1, 2, 4, 0, 1, 0, time.UTC)
	}
	second, err := p.CurrentStreamName(context.Background())
	assert.NoError(t, err)

	assert.Equal(t, "app-2025-01-02-03-UTC", first)
	assert.Equal(t, "app-2025-01-02-04-UTC", second)
	assert.Equal(t, 2, client.CreateCalls)
}
