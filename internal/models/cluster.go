package models

import "time"

// LocationCluster 同一坐标上的事件聚合
type LocationCluster struct {
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	TotalEvents int         `json:"total_events"`
	Violations  int         `json:"violations"`
	MaxSpeed    float64     `json:"max_speed"`
	LatestEvent time.Time   `json:"latest_event"`
	Events      []*MapEvent `json:"events"`
}

type coordKey struct {
	lat, lng float64
}

// ClusterByLocation 按精确坐标聚合事件，顺序为坐标首次出现的顺序
func ClusterByLocation(events []*MapEvent) []*LocationCluster {
	index := make(map[coordKey]*LocationCluster)
	clusters := make([]*LocationCluster, 0)

	for _, e := range events {
		if !e.HasLocation() {
			continue
		}
		k := coordKey{*e.Latitude, *e.Longitude}
		c, ok := index[k]
		if !ok {
			c = &LocationCluster{
				Latitude:    k.lat,
				Longitude:   k.lng,
				MaxSpeed:    e.Speed,
				LatestEvent: e.CreatedAt,
			}
			index[k] = c
			clusters = append(clusters, c)
		}
		c.TotalEvents++
		c.Events = append(c.Events, e)
		if e.Speed > e.SpeedLimit {
			c.Violations++
		}
		if e.Speed > c.MaxSpeed {
			c.MaxSpeed = e.Speed
		}
		if e.CreatedAt.After(c.LatestEvent) {
			c.LatestEvent = e.CreatedAt
		}
	}
	return clusters
}
