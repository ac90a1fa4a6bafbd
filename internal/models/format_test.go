package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimeAgo(t *testing.T) {
	cases := map[float64]string{
		-3:     "0s ago",
		0:      "0s ago",
		59.9:   "59s ago",
		60:     "1m ago",
		3599:   "59m ago",
		3600:   "1h ago",
		86399:  "23h ago",
		86400:  "1d ago",
		259300: "3d ago",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatTimeAgo(in), "seconds=%v", in)
	}
}

func TestThumbnailURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://img/x.jpg", "http://img/x_thumb.jpg"},
		{"http://img/x.jpeg", "http://img/x_thumb.jpeg"},
		{"http://img/x.PNG", "http://img/x_thumb.PNG"},
		{"http://img/x.gif", "http://img/x.gif"},
		{"http://img/x.jpg?sig=1", "http://img/x.jpg?sig=1"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ThumbnailURL(tc.in), tc.in)
	}
}

func ptrFloat(v float64) *float64 { return &v }

func TestClusterByLocation(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	events := []*MapEvent{
		{SpeedEvent: SpeedEvent{ID: 1, Speed: 70, SpeedLimit: 50, Latitude: ptrFloat(1.5), Longitude: ptrFloat(2.5), CreatedAt: base}},
		{SpeedEvent: SpeedEvent{ID: 2, Speed: 45, SpeedLimit: 50, Latitude: ptrFloat(3), Longitude: ptrFloat(4), CreatedAt: base.Add(time.Minute)}},
		{SpeedEvent: SpeedEvent{ID: 3, Speed: 88, SpeedLimit: 50, Latitude: ptrFloat(1.5), Longitude: ptrFloat(2.5), CreatedAt: base.Add(-time.Hour)}},
		{SpeedEvent: SpeedEvent{ID: 4, Speed: 60, SpeedLimit: 50}},
	}

	clusters := ClusterByLocation(events)
	require.Len(t, clusters, 2)

	first := clusters[0]
	assert.Equal(t, 1.5, first.Latitude)
	assert.Equal(t, 2.5, first.Longitude)
	assert.Equal(t, 2, first.TotalEvents)
	assert.Equal(t, 2, first.Violations)
	assert.Equal(t, 88.0, first.MaxSpeed)
	assert.Equal(t, base, first.LatestEvent)
	assert.Len(t, first.Events, 2)

	second := clusters[1]
	assert.Equal(t, 1, second.TotalEvents)
	assert.Equal(t, 0, second.Violations)
	assert.Equal(t, 45.0, second.MaxSpeed)
}

func TestClusterByLocationEmpty(t *testing.T) {
	clusters := ClusterByLocation(nil)
	assert.NotNil(t, clusters)
	assert.Empty(t, clusters)
}
